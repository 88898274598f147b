package stream

func newTestBuf(slot int, values ...int16) *WaveBuf {
	return &WaveBuf{Data: values, Frames: len(values) / Channels, Slot: slot}
}
