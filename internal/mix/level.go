package mix

import (
	"errors"
	"fmt"
	"math"

	"github.com/audiolibrelab/asrbench/internal/audio"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

// SilenceDB is the gain used for a 0% level and the floor for measured levels.
const SilenceDB = -120.0

var (
	// ErrInvalidLevel is returned for a percentage outside [0, 100] or not finite.
	ErrInvalidLevel = errors.New("invalid level")
	// ErrEmptyTrack is returned when a track to be aligned has no frames.
	ErrEmptyTrack = errors.New("empty track")
)

// ValidateLevel checks that percent is a usable volume percentage.
func ValidateLevel(percent float64) error {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %v (must be within 0-100)", ErrInvalidLevel, percent)
	}
	return nil
}

// GainDB converts a volume percentage to a gain in dB relative to the
// source. 100 is unity, 0 maps to SilenceDB.
func GainDB(percent float64) (float64, error) {
	if err := ValidateLevel(percent); err != nil {
		return 0, err
	}
	if percent == 0 {
		return SilenceDB, nil
	}
	return 20 * math.Log10(percent/100), nil
}

// ApplyLevel returns a new buffer scaled to percent of the source amplitude.
func ApplyLevel(buf audio.Buffer, percent float64) (audio.Buffer, error) {
	gainDB, err := GainDB(percent)
	if err != nil {
		return audio.Buffer{}, err
	}

	gain := core.DBToLinear(gainDB)
	out := buf.Clone()
	for i, v := range out.Samples {
		out.Samples[i] = v * gain
	}
	return out, nil
}
