package mix

import (
	"github.com/audiolibrelab/asrbench/internal/audio"
)

// Align returns secondary conformed to exactly primary's frame count. A
// shorter secondary is looped whole and the last repeat truncated; a longer
// one is cut from the start.
func Align(primary, secondary audio.Buffer) (audio.Buffer, error) {
	n := secondary.FrameCount()
	if n == 0 {
		return audio.Buffer{}, ErrEmptyTrack
	}

	target := primary.FrameCount()
	ch := secondary.Channels
	out := secondary.WithSamples(make([]float64, target*ch))

	for pos := 0; pos < target; pos += n {
		copy(out.Samples[pos*ch:], secondary.Samples[:n*ch])
	}
	return out, nil
}
