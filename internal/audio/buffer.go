package audio

import (
	"time"
)

// Buffer holds interleaved PCM samples normalized to full scale.
// Samples may exceed [-1, 1] while inside the pipeline; clamping happens only
// when converting for hardware output or integer encoding.
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int
	BitDepth   int
}

// NewBuffer returns a zeroed buffer with the given frame count.
func NewBuffer(frames, sampleRate, channels, bitDepth int) Buffer {
	if frames < 0 {
		frames = 0
	}
	return Buffer{
		Samples:    make([]float64, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
	}
}

// FrameCount returns the number of frames (samples per channel).
func (b Buffer) FrameCount() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.FrameCount()) * time.Second / time.Duration(b.SampleRate)
}

// Clone returns a deep copy of the buffer.
func (b Buffer) Clone() Buffer {
	out := b
	out.Samples = make([]float64, len(b.Samples))
	copy(out.Samples, b.Samples)
	return out
}

// WithSamples returns a buffer sharing b's format but holding samples.
func (b Buffer) WithSamples(samples []float64) Buffer {
	out := b
	out.Samples = samples
	return out
}

// Mono downmixes to a single channel by averaging each frame.
// A mono input is returned as a copy.
func (b Buffer) Mono() Buffer {
	if b.Channels <= 1 {
		out := b.Clone()
		out.Channels = 1
		return out
	}

	frames := b.FrameCount()
	mono := make([]float64, frames)
	ch := b.Channels
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += b.Samples[i*ch+c]
		}
		mono[i] = sum / float64(ch)
	}

	return Buffer{
		Samples:    mono,
		SampleRate: b.SampleRate,
		Channels:   1,
		BitDepth:   b.BitDepth,
	}
}

// Frames returns the sub-buffer [start, end) in frames. The returned buffer
// shares the underlying array.
func (b Buffer) Frames(start, end int) Buffer {
	n := b.FrameCount()
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return b.WithSamples(b.Samples[start*b.Channels : end*b.Channels])
}
