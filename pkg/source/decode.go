package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/mitchellh/go-homedir"
)

// Open decodes the file at path into a Buffer, picking the decoder by
// extension. A leading ~ is expanded to the home directory.
func Open(path string) (*Buffer, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".wav", ".wave":
		return OpenWAV(expanded)
	case ".mp3":
		return OpenMP3(expanded)
	case ".flac":
		return OpenFLAC(expanded)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, filepath.Ext(expanded))
	}
}

// OpenWAV decodes a WAV file.
func OpenWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logDecoded("wav", path, b)
	return b, nil
}

// DecodeWAV decodes 44100 Hz mono or stereo PCM from r.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidFile
	}

	channels := int(d.NumChans)
	if err := checkFormat(int(d.SampleRate), channels); err != nil {
		return nil, err
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	depth := int(d.BitDepth)
	if depth == 0 || depth > 32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, depth)
	}
	maxVal := float32(audio.IntMaxSignedValue(depth))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / maxVal
	}
	return NewBuffer(interleave(samples, channels)), nil
}

// OpenMP3 decodes an MP3 file.
func OpenMP3(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := DecodeMP3(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logDecoded("mp3", path, b)
	return b, nil
}

// DecodeMP3 decodes MP3 data from r. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (*Buffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := checkFormat(d.SampleRate(), 2); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 data: %w", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(v) / 32768
	}
	return NewBuffer(samples), nil
}

// OpenFLAC decodes a FLAC file.
func OpenFLAC(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := DecodeFLAC(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logDecoded("flac", path, b)
	return b, nil
}

// DecodeFLAC decodes FLAC data from r.
func DecodeFLAC(r io.Reader) (*Buffer, error) {
	s, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer s.Close()

	channels := int(s.Info.NChannels)
	if err := checkFormat(int(s.Info.SampleRate), channels); err != nil {
		return nil, err
	}

	var samples []float32
	if s.Info.NSamples > 0 {
		samples = make([]float32, 0, int(s.Info.NSamples)*channels)
	}

	for {
		frame, err := s.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		maxVal := float32(int64(1) << (frame.BitsPerSample - 1))
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/maxVal)
			}
		}
	}

	return NewBuffer(interleave(samples, channels)), nil
}

func logDecoded(kind, path string, b *Buffer) {
	log.Debug("Decoded audio file",
		"format", kind,
		"path", path,
		"frames", b.Frames(),
		"duration", b.Duration())
}
