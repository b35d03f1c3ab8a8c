package mix

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/audiolibrelab/asrbench/internal/audio"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/resample"
	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

// Result is a mixed buffer plus the measured levels of its two components.
type Result struct {
	Mixed        audio.Buffer
	VoiceLevelDB float64
	NoiseLevelDB float64
	// LevelDeltaDB is VoiceLevelDB - NoiseLevelDB.
	LevelDeltaDB float64
}

// Mixer overlays a noise track on a voice track at given levels.
type Mixer struct {
	quality resample.Quality
}

// New creates a mixer that resamples noise with the given quality.
func New(quality resample.Quality) *Mixer {
	return &Mixer{quality: quality}
}

// ParseQuality maps a configured resampling quality name to its preset.
func ParseQuality(name string) (resample.Quality, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fast":
		return resample.QualityFast, nil
	case "", "balanced":
		return resample.QualityBalanced, nil
	case "best":
		return resample.QualityBest, nil
	}
	return resample.QualityBalanced, fmt.Errorf("unknown resample quality %q (expected fast, balanced or best)", name)
}

// Mix downmixes both tracks to mono, brings the noise to the voice sample
// rate, applies the two levels, loops or cuts the noise to the voice length
// and sums. The sum is not clamped.
func (m *Mixer) Mix(voice, noise audio.Buffer, voicePercent, noisePercent float64) (Result, error) {
	if err := ValidateLevel(voicePercent); err != nil {
		return Result{}, fmt.Errorf("voice level: %w", err)
	}
	if err := ValidateLevel(noisePercent); err != nil {
		return Result{}, fmt.Errorf("noise level: %w", err)
	}
	if voice.SampleRate <= 0 {
		return Result{}, fmt.Errorf("voice has invalid sample rate %d", voice.SampleRate)
	}
	if noise.FrameCount() == 0 {
		return Result{}, fmt.Errorf("noise: %w", ErrEmptyTrack)
	}

	v := voice.Mono()
	n, err := m.conformRate(noise.Mono(), v.SampleRate)
	if err != nil {
		return Result{}, err
	}

	v, err = ApplyLevel(v, voicePercent)
	if err != nil {
		return Result{}, err
	}
	n, err = ApplyLevel(n, noisePercent)
	if err != nil {
		return Result{}, err
	}

	n, err = Align(v, n)
	if err != nil {
		return Result{}, fmt.Errorf("noise: %w", err)
	}

	mixed := v.Clone()
	for i := range mixed.Samples {
		mixed.Samples[i] += n.Samples[i]
	}

	voiceDB := levelDB(v.Samples)
	noiseDB := levelDB(n.Samples)

	slog.Debug("Mixed tracks",
		"frames", mixed.FrameCount(),
		"sample_rate", mixed.SampleRate,
		"voice_level", voicePercent,
		"noise_level", noisePercent,
		"voice_dbfs", voiceDB,
		"noise_dbfs", noiseDB)

	return Result{
		Mixed:        mixed,
		VoiceLevelDB: voiceDB,
		NoiseLevelDB: noiseDB,
		LevelDeltaDB: voiceDB - noiseDB,
	}, nil
}

func (m *Mixer) conformRate(buf audio.Buffer, rate int) (audio.Buffer, error) {
	if buf.SampleRate == rate {
		return buf, nil
	}
	if buf.SampleRate <= 0 {
		return audio.Buffer{}, fmt.Errorf("noise has invalid sample rate %d", buf.SampleRate)
	}

	out, err := resample.Resample(buf.Samples, rate, buf.SampleRate, resample.WithQuality(m.quality))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to resample noise %d -> %d Hz: %w", buf.SampleRate, rate, err)
	}

	slog.Debug("Resampled noise", "from", buf.SampleRate, "to", rate, "frames", len(out))

	res := buf.WithSamples(out)
	res.SampleRate = rate
	return res, nil
}

// levelDB is the RMS level in dBFS, floored at SilenceDB.
func levelDB(samples []float64) float64 {
	db := core.LinearToDB(dsptime.RMS(samples))
	if db < SilenceDB {
		return SilenceDB
	}
	return db
}
