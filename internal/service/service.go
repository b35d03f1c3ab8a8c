package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/asrbench/internal/asr"
	"github.com/audiolibrelab/asrbench/internal/audio"
	"github.com/audiolibrelab/asrbench/internal/config"
	"github.com/audiolibrelab/asrbench/internal/corpus"
	"github.com/audiolibrelab/asrbench/internal/mix"
	"github.com/audiolibrelab/asrbench/internal/notify"
	"github.com/audiolibrelab/asrbench/internal/report"
	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/sweep"
	"go.uber.org/multierr"
)

const (
	tableName    = "results"
	failuresName = "failures.tsv"
	runDirLayout = "20060102-150405"
)

// Service wires configuration to the corpus, rig, recognizers and sweep engine.
type Service struct {
	cfg      *config.Config
	codec    *audio.Codec
	mixer    *mix.Mixer
	registry *asr.Registry
	notifier *notify.Notifier

	backend audio.Backend
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithBackend replaces the audio backend selected by configuration.
func WithBackend(b audio.Backend) Option {
	return func(s *Service) { s.backend = b }
}

// WithRegistry replaces the recognizer registry built from configuration.
func WithRegistry(r *asr.Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithNotifier replaces the desktop notifier.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a service for a resolved configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	quality, err := mix.ParseQuality(cfg.Audio.ResampleQuality)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		codec:    audio.NewCodec(),
		mixer:    mix.New(quality),
		notifier: notify.New(cfg.Notifications),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = asr.NewRegistry()
		if err := s.registry.Build(cfg.Models); err != nil {
			return nil, fmt.Errorf("failed to build recognizers: %w", err)
		}
	}

	return s, nil
}

func (s *Service) getBackend() (audio.Backend, error) {
	if s.backend != nil {
		return s.backend, nil
	}
	b, err := audio.NewBackend(s.cfg.Audio.Backend)
	if err != nil {
		return nil, err
	}
	s.backend = b
	return b, nil
}

func (s *Service) newRig() (*audio.Rig, error) {
	backend, err := s.getBackend()
	if err != nil {
		return nil, err
	}
	return audio.NewRig(backend, audio.RigConfig{
		InputDevice:     s.cfg.Rig.InputDevice,
		OutputDevice:    s.cfg.Rig.OutputDevice,
		FramesPerBuffer: s.cfg.Audio.FramesPerBuffer,
	}), nil
}

// RunOptions narrows a run below what the configuration selects.
type RunOptions struct {
	// Models, Voices and Noises select by name or id; empty selects everything.
	Models []string
	Voices []string
	Noises []string

	OnResult func(sweep.ResultRecord)
}

// RunResult describes a finished or aborted run.
type RunResult struct {
	Report       *sweep.Report
	RunDir       string
	TablePath    string
	FailuresPath string
}

// Run validates the parameters, checks the rig, executes the sweep and writes
// the result table. An aborted sweep still writes the rows completed before
// the failure and returns them alongside the error.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	metric, err := score.ParseMetric(s.cfg.Metric)
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(s.cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	plan, err := s.buildPlan(opts)
	if err != nil {
		return nil, err
	}
	if err := sweep.Validate(plan); err != nil {
		return nil, fmt.Errorf("invalid run parameters: %w", err)
	}

	rig, err := s.newRig()
	if err != nil {
		return nil, err
	}
	if err := rig.CheckDevices(); err != nil {
		return nil, fmt.Errorf("preflight check failed: %w", err)
	}

	runDir := filepath.Join(s.cfg.Output.Directory, s.now().Format(runDirLayout))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	slog.Debug("Preflight check passed", "input", s.cfg.Rig.InputDevice, "output", s.cfg.Rig.OutputDevice, "run_dir", runDir)

	engine := sweep.New(s.codec, s.mixer, rig, sweep.Options{
		Metric:        metric,
		Workers:       s.cfg.Recognition.Workers,
		ArtifactDir:   runDir,
		KeepArtifacts: s.cfg.Output.KeepArtifacts,
		OnResult:      opts.OnResult,
	})

	rep, runErr := engine.Run(ctx, plan, sweep.Metadata{
		DistanceMeters: s.cfg.Rig.DistanceMeters,
		DeviceName:     s.cfg.Rig.DeviceName,
	})
	if rep == nil {
		s.notifier.SweepFailed(runErr)
		return nil, runErr
	}

	result := &RunResult{Report: rep, RunDir: runDir}

	// A sweep that aborted before its first result leaves no table behind
	if runErr == nil || len(rep.Records) > 0 {
		result.TablePath = filepath.Join(runDir, tableName+format.Ext())
		if err := report.WriteTable(result.TablePath, format, metric, rep.Records); err != nil {
			return result, multierr.Append(runErr, err)
		}
	}
	if len(rep.Failures) > 0 {
		result.FailuresPath = filepath.Join(runDir, failuresName)
		if err := report.WriteFailures(result.FailuresPath, rep.Failures); err != nil {
			return result, multierr.Append(runErr, err)
		}
	}

	if runErr != nil {
		slog.Error("Sweep aborted", "completed", rep.Completed, "iterations", rep.Iterations, "error", runErr)
		s.notifier.SweepFailed(runErr)
		return result, runErr
	}

	slog.Info("Sweep finished",
		"records", len(rep.Records),
		"failures", len(rep.Failures),
		"excluded", len(rep.Excluded),
		"table", result.TablePath)
	s.notifier.SweepDone(len(rep.Records), len(rep.Failures), result.TablePath)

	return result, nil
}

func (s *Service) buildPlan(opts RunOptions) (sweep.Plan, error) {
	models, err := s.registry.Select(opts.Models)
	if err != nil {
		return sweep.Plan{}, err
	}

	c, err := corpus.Scan(s.cfg.Corpus.VoiceDir, s.cfg.Corpus.NoiseDir, s.cfg.Extensions)
	if err != nil {
		return sweep.Plan{}, err
	}

	voices, err := corpus.Filter(c.Voices, pick(opts.Voices, s.cfg.Corpus.Voices))
	if err != nil {
		return sweep.Plan{}, fmt.Errorf("voice selection: %w", err)
	}
	noises, err := corpus.Filter(c.Noises, pick(opts.Noises, s.cfg.Corpus.Noises))
	if err != nil {
		return sweep.Plan{}, fmt.Errorf("noise selection: %w", err)
	}

	selected := &corpus.Corpus{Voices: voices, Noises: noises}
	if err := selected.Validate(); err != nil {
		return sweep.Plan{}, fmt.Errorf("invalid corpus: %w", err)
	}

	return sweep.Plan{
		Voices: voices,
		Noises: noises,
		Levels: s.cfg.Levels,
		Models: models,
	}, nil
}

func pick(override, configured []string) []string {
	if len(override) > 0 {
		return override
	}
	return configured
}

// MixFiles mixes a voice and a noise file at the given levels and writes the
// result as WAV.
func (s *Service) MixFiles(ctx context.Context, voicePath, noisePath string, voicePercent, noisePercent float64, outPath string) (mix.Result, error) {
	voice, err := s.codec.Decode(ctx, voicePath)
	if err != nil {
		return mix.Result{}, err
	}
	noise, err := s.codec.Decode(ctx, noisePath)
	if err != nil {
		return mix.Result{}, err
	}

	res, err := s.mixer.Mix(voice, noise, voicePercent, noisePercent)
	if err != nil {
		return mix.Result{}, err
	}

	if err := s.codec.EncodeWAV(outPath, res.Mixed); err != nil {
		return mix.Result{}, err
	}

	slog.Info("Mix written", "output", outPath, "dB_diff", fmt.Sprintf("%.2f", res.LevelDeltaDB))
	return res, nil
}

// CaptureFile plays a file through the rig and writes what the microphone
// picked up.
func (s *Service) CaptureFile(ctx context.Context, inPath, outPath string) (*audio.CaptureInfo, error) {
	buf, err := s.codec.Decode(ctx, inPath)
	if err != nil {
		return nil, err
	}

	rig, err := s.newRig()
	if err != nil {
		return nil, err
	}
	if err := rig.CheckDevices(); err != nil {
		return nil, fmt.Errorf("preflight check failed: %w", err)
	}

	captured, err := rig.PlayAndRecord(ctx, buf)
	if err != nil {
		return nil, err
	}
	if err := s.codec.EncodeWAV(outPath, captured); err != nil {
		return nil, err
	}

	_, info := rig.GetStatus()
	return info, nil
}

// Transcribe sends one audio file to a configured model.
func (s *Service) Transcribe(ctx context.Context, model, path string) (string, error) {
	rec, err := s.registry.Get(model)
	if err != nil {
		return "", err
	}
	return rec.Recognize(ctx, path)
}

// ScoreTexts normalizes both texts and computes the error rate.
func ScoreTexts(metric score.Metric, reference, hypothesis string) float64 {
	return metric.Score(metric.Normalize(reference), metric.Normalize(hypothesis))
}

// ListDevices returns the devices of the configured backend.
func (s *Service) ListDevices() ([]audio.DeviceInfo, error) {
	backend, err := s.getBackend()
	if err != nil {
		return nil, err
	}
	return backend.ListDevices()
}
