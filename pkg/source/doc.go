// Package source provides the sample sources an engine mixes into an
// output stream: generated tones and silence, and decoded WAV, MP3 and
// FLAC files. Every source yields interleaved stereo float32 frames at
// 44100 Hz.
package source
