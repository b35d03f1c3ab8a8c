// Package sweep runs the voice × noise × level measurement loop.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/audiolibrelab/asrbench/internal/asr"
	"github.com/audiolibrelab/asrbench/internal/audio"
	"github.com/audiolibrelab/asrbench/internal/corpus"
	"github.com/audiolibrelab/asrbench/internal/mix"
	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/sourcegraph/conc/pool"
)

// Codec decodes corpus samples and encodes mixes and captures.
type Codec interface {
	Decode(ctx context.Context, path string) (audio.Buffer, error)
	EncodeWAV(path string, buf audio.Buffer) error
}

// Capturer plays a buffer and records it back. *audio.Rig implements it.
type Capturer interface {
	PlayAndRecord(ctx context.Context, mixed audio.Buffer) (audio.Buffer, error)
}

// LevelPair is one voice/noise volume setting in percent.
type LevelPair struct {
	Voice float64 `json:"voice" yaml:"voice" mapstructure:"voice"`
	Noise float64 `json:"noise" yaml:"noise" mapstructure:"noise"`
}

// Plan is the cross product to measure.
type Plan struct {
	Voices []corpus.Sample
	Noises []corpus.Sample
	Levels []LevelPair
	Models []asr.Recognizer
}

// Metadata describes the physical setup and is copied into every record.
type Metadata struct {
	DistanceMeters float64
	DeviceName     string
}

// ResultRecord is one row of the result table.
type ResultRecord struct {
	Iteration      int     `json:"iteration"`
	VoiceID        string  `json:"voice_id"`
	NoiseID        string  `json:"noise_id"`
	VoiceLevel     float64 `json:"voice_level"`
	NoiseLevel     float64 `json:"noise_level"`
	DistanceMeters float64 `json:"distance_m"`
	DeviceName     string  `json:"device"`
	LevelDeltaDB   float64 `json:"db_diff"`
	ModelName      string  `json:"model"`
	// ErrorRate is a fraction; 0.25 means 25%.
	ErrorRate float64 `json:"error_rate"`
}

// Failure is an iteration (or one model of it) left out of the records.
type Failure struct {
	Iteration  int
	VoiceID    string
	NoiseID    string
	VoiceLevel float64
	NoiseLevel float64
	Model      string
	Stage      string
	Err        error

	modelIndex int
}

// Report is the outcome of a sweep.
type Report struct {
	Records  []ResultRecord
	Failures []Failure
	Excluded []corpus.Excluded
	// Iterations is the number of planned captures.
	Iterations int
	// Completed is the number of captures that finished.
	Completed int
	Metric    score.Metric
}

// Options tune a sweep.
type Options struct {
	Metric score.Metric
	// Workers bounds concurrent recognition calls. Capture is always serial.
	Workers int
	// ArtifactDir receives mixed<N>.wav, rec<N>.wav and result<N>_<model>.txt
	// when KeepArtifacts is set.
	ArtifactDir   string
	KeepArtifacts bool
	// OnResult is called for each scored record as soon as it is available.
	// Calls are serialized but arrive in completion order.
	OnResult func(ResultRecord)
}

// Engine drives Mixer, capture, recognition and scoring over a Plan.
type Engine struct {
	codec Codec
	mixer *mix.Mixer
	rig   Capturer
	opts  Options

	resultMu sync.Mutex
}

// New creates an engine.
func New(codec Codec, mixer *mix.Mixer, rig Capturer, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Metric == "" {
		opts.Metric = score.MetricCER
	}
	return &Engine{
		codec: codec,
		mixer: mixer,
		rig:   rig,
		opts:  opts,
	}
}

// iteration holds one capture and one result slot per model. Recognition
// jobs write only their own slot.
type iteration struct {
	index      int
	voice      corpus.Sample
	noise      corpus.Sample
	level      LevelPair
	levelDelta float64
	outcomes   []outcome
}

type outcome struct {
	done      bool
	errorRate float64
	err       error
}

// Validate checks a plan without touching any device.
func Validate(plan Plan) error {
	if len(plan.Levels) == 0 {
		return errors.New("no level pairs configured")
	}
	for i, l := range plan.Levels {
		if err := mix.ValidateLevel(l.Voice); err != nil {
			return fmt.Errorf("level pair %d voice: %w", i+1, err)
		}
		if err := mix.ValidateLevel(l.Noise); err != nil {
			return fmt.Errorf("level pair %d noise: %w", i+1, err)
		}
	}
	if len(plan.Models) == 0 {
		return errors.New("no recognition models selected")
	}
	if len(plan.Noises) == 0 {
		return errors.New("no noise samples")
	}
	if len(plan.Voices) == 0 {
		return errors.New("no voice samples")
	}
	return nil
}

// Run executes the sweep. Recognition failures, failed mixes and artifacts
// that could not be written are recorded in Report.Failures and the sweep
// continues. A device error or cancellation aborts the sweep: the returned
// report holds every record completed before it, alongside the error.
func (e *Engine) Run(ctx context.Context, plan Plan, meta Metadata) (*Report, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}

	report := &Report{Metric: e.opts.Metric}

	voices := make([]corpus.Sample, 0, len(plan.Voices))
	for _, v := range plan.Voices {
		if !v.HasReference {
			ex := corpus.Excluded{Sample: v, Err: fmt.Errorf("%s: %w", v.ID, corpus.ErrMissingReference)}
			report.Excluded = append(report.Excluded, ex)
			slog.Warn("Excluding voice sample without reference", "voice", v.ID, "path", v.Path)
			continue
		}
		voices = append(voices, v)
	}
	if len(voices) == 0 {
		return report, fmt.Errorf("no voice samples with a reference transcript: %w", corpus.ErrMissingReference)
	}

	voiceBufs, err := e.decodeAll(ctx, voices)
	if err != nil {
		return report, err
	}
	noiseBufs, err := e.decodeAll(ctx, plan.Noises)
	if err != nil {
		return report, err
	}

	workDir, cleanup, err := e.workDir()
	if err != nil {
		return report, err
	}
	defer cleanup()

	report.Iterations = len(voices) * len(plan.Noises) * len(plan.Levels)
	slog.Info("Starting sweep",
		"voices", len(voices),
		"noises", len(plan.Noises),
		"levels", len(plan.Levels),
		"models", len(plan.Models),
		"iterations", report.Iterations,
		"workers", e.opts.Workers)

	recognizers := pool.New().WithMaxGoroutines(e.opts.Workers)
	var iterations []*iteration
	var failuresMu sync.Mutex

	addFailure := func(f Failure) {
		slog.Warn("Iteration failed",
			"iteration", f.Iteration,
			"voice", f.VoiceID,
			"noise", f.NoiseID,
			"voice_level", f.VoiceLevel,
			"noise_level", f.NoiseLevel,
			"distance_m", meta.DistanceMeters,
			"device", meta.DeviceName,
			"model", f.Model,
			"stage", f.Stage,
			"error", f.Err)
		failuresMu.Lock()
		report.Failures = append(report.Failures, f)
		failuresMu.Unlock()
	}

	var runErr error
	idx := 0

loop:
	for vi, voice := range voices {
		for ni, noise := range plan.Noises {
			for _, level := range plan.Levels {
				idx++
				it := &iteration{
					index:    idx,
					voice:    voice,
					noise:    noise,
					level:    level,
					outcomes: make([]outcome, len(plan.Models)),
				}

				failure := Failure{
					Iteration:  idx,
					VoiceID:    voice.ID,
					NoiseID:    noise.ID,
					VoiceLevel: level.Voice,
					NoiseLevel: level.Noise,
				}

				slog.Info("Running iteration",
					"iteration", fmt.Sprintf("%d/%d", idx, report.Iterations),
					"voice", voice.ID,
					"noise", noise.ID,
					"voice_level", level.Voice,
					"noise_level", level.Noise)

				recPath, stage, err := e.capture(ctx, it, voiceBufs[vi], noiseBufs[ni], workDir)
				if err != nil {
					var de *audio.DeviceError
					if errors.As(err, &de) || ctx.Err() != nil {
						runErr = fmt.Errorf("sweep aborted at iteration %d (voice %s, noise %s, levels %v/%v): %w",
							idx, voice.ID, noise.ID, level.Voice, level.Noise, err)
						break loop
					}
					failure.Stage = stage
					failure.Err = err
					addFailure(failure)
					continue
				}

				report.Completed++
				iterations = append(iterations, it)

				for mi, model := range plan.Models {
					recognizers.Go(func() {
						e.recognize(ctx, it, mi, model, recPath, workDir, meta)
						if err := it.outcomes[mi].err; err != nil {
							f := failure
							f.Model = model.Name()
							f.modelIndex = mi
							f.Stage = StageRecognize
							f.Err = err
							addFailure(f)
						}
					})
				}
			}
		}
	}

	recognizers.Wait()

	for _, it := range iterations {
		for mi, model := range plan.Models {
			o := it.outcomes[mi]
			if !o.done || o.err != nil {
				continue
			}
			report.Records = append(report.Records, e.record(it, model.Name(), o.errorRate, meta))
		}
	}
	sortFailures(report.Failures)

	slog.Info("Sweep finished",
		"records", len(report.Records),
		"failures", len(report.Failures),
		"excluded", len(report.Excluded),
		"completed", report.Completed,
		"iterations", report.Iterations)

	return report, runErr
}

// Failure stages.
const (
	StageMix       = "mix"
	StageCapture   = "capture"
	StageRecognize = "recognize"
)

var errArtifact = errors.New("artifact write failed")

// capture mixes, plays and records one iteration and returns the path of the
// encoded capture, or the stage that failed.
func (e *Engine) capture(ctx context.Context, it *iteration, voice, noise audio.Buffer, dir string) (string, string, error) {
	res, err := e.mixer.Mix(voice, noise, it.level.Voice, it.level.Noise)
	if err != nil {
		return "", StageMix, err
	}
	it.levelDelta = res.LevelDeltaDB

	if e.opts.KeepArtifacts {
		mixedPath := filepath.Join(dir, fmt.Sprintf("mixed%d.wav", it.index))
		if err := e.codec.EncodeWAV(mixedPath, res.Mixed); err != nil {
			return "", StageMix, fmt.Errorf("%w: %w", errArtifact, err)
		}
	}

	start := time.Now()
	captured, err := e.rig.PlayAndRecord(ctx, res.Mixed)
	if err != nil {
		return "", StageCapture, err
	}
	slog.Debug("Captured iteration", "iteration", it.index, "elapsed", time.Since(start), "frames", captured.FrameCount())

	recPath := filepath.Join(dir, fmt.Sprintf("rec%d.wav", it.index))
	if err := e.codec.EncodeWAV(recPath, captured); err != nil {
		return "", StageCapture, fmt.Errorf("%w: %w", errArtifact, err)
	}
	return recPath, "", nil
}

// sortFailures orders failures by iteration, then by model selection order.
func sortFailures(failures []Failure) {
	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Iteration != failures[j].Iteration {
			return failures[i].Iteration < failures[j].Iteration
		}
		return failures[i].modelIndex < failures[j].modelIndex
	})
}

func (e *Engine) recognize(ctx context.Context, it *iteration, mi int, model asr.Recognizer, recPath, dir string, meta Metadata) {
	out := &it.outcomes[mi]

	hyp, err := model.Recognize(ctx, recPath)
	if err != nil {
		out.err = err
		return
	}

	if e.opts.KeepArtifacts {
		name := fmt.Sprintf("result%d_%s.txt", it.index, safeName(model.Name()))
		if err := os.WriteFile(filepath.Join(dir, name), []byte(hyp), 0o644); err != nil {
			slog.Warn("Failed to write transcript", "file", name, "error", err)
		}
	}

	metric := e.opts.Metric
	ref := metric.Normalize(it.voice.Reference)
	out.errorRate = metric.Score(ref, metric.Normalize(hyp))
	out.done = true

	slog.Debug("Scored transcript",
		"iteration", it.index,
		"model", model.Name(),
		"hypothesis", hyp,
		"error_rate", out.errorRate)

	if e.opts.OnResult != nil {
		rec := e.record(it, model.Name(), out.errorRate, meta)
		e.resultMu.Lock()
		e.opts.OnResult(rec)
		e.resultMu.Unlock()
	}
}

func (e *Engine) record(it *iteration, model string, errorRate float64, meta Metadata) ResultRecord {
	return ResultRecord{
		Iteration:      it.index,
		VoiceID:        it.voice.ID,
		NoiseID:        it.noise.ID,
		VoiceLevel:     it.level.Voice,
		NoiseLevel:     it.level.Noise,
		DistanceMeters: meta.DistanceMeters,
		DeviceName:     meta.DeviceName,
		LevelDeltaDB:   it.levelDelta,
		ModelName:      model,
		ErrorRate:      errorRate,
	}
}

func (e *Engine) decodeAll(ctx context.Context, samples []corpus.Sample) ([]audio.Buffer, error) {
	bufs := make([]audio.Buffer, len(samples))
	for i, s := range samples {
		buf, err := e.codec.Decode(ctx, s.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to decode sample %s: %w", s.ID, err)
		}
		bufs[i] = buf
	}
	return bufs, nil
}

// workDir returns the artifact directory, or a temporary one removed by
// cleanup when artifacts are not kept.
func (e *Engine) workDir() (string, func(), error) {
	if e.opts.KeepArtifacts {
		if e.opts.ArtifactDir == "" {
			return "", nil, errors.New("artifact directory is required to keep artifacts")
		}
		if err := os.MkdirAll(e.opts.ArtifactDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
		return e.opts.ArtifactDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "asrbench-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove temporary directory", "dir", dir, "error", err)
		}
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}
