// Package corpus discovers voice and noise samples on disk.
package corpus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/audiolibrelab/asrbench/internal/audio"
)

// ErrMissingReference marks a voice sample without a usable transcript.
var ErrMissingReference = errors.New("missing reference transcript")

// ReferenceExt is the extension of the transcript sidecar next to a voice sample.
const ReferenceExt = ".txt"

// Sample is one audio file of the corpus.
type Sample struct {
	// ID is the file name without extension.
	ID   string
	Path string

	// Reference is the ground-truth transcript of a voice sample.
	Reference    string
	HasReference bool
}

// Excluded is a voice sample left out of a sweep and the reason.
type Excluded struct {
	Sample Sample
	Err    error
}

// Corpus is the set of voice and noise samples, sorted by file name.
type Corpus struct {
	Voices []Sample
	Noises []Sample
}

// Scan lists the audio files of both directories. Voice samples get their
// reference transcript loaded from the same-named sidecar when present.
func Scan(voiceDir, noiseDir string, extensions []string) (*Corpus, error) {
	voices, err := scanDir(voiceDir, extensions)
	if err != nil {
		return nil, fmt.Errorf("voice samples: %w", err)
	}
	noises, err := scanDir(noiseDir, extensions)
	if err != nil {
		return nil, fmt.Errorf("noise samples: %w", err)
	}

	for i := range voices {
		loadReference(&voices[i])
	}

	slog.Debug("Scanned corpus", "voice_dir", voiceDir, "voices", len(voices), "noise_dir", noiseDir, "noises", len(noises))
	return &Corpus{Voices: voices, Noises: noises}, nil
}

func scanDir(dir string, extensions []string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	seen := make(map[string]string)
	var samples []Sample
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !audio.IsSupported(entry.Name(), extensions) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if other, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate sample id %q: %s and %s", id, other, entry.Name())
		}
		seen[id] = entry.Name()

		samples = append(samples, Sample{
			ID:   id,
			Path: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		return filepath.Base(samples[i].Path) < filepath.Base(samples[j].Path)
	})
	return samples, nil
}

func loadReference(s *Sample) {
	path := strings.TrimSuffix(s.Path, filepath.Ext(s.Path)) + ReferenceExt
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read reference transcript", "path", path, "error", err)
		}
		return
	}

	ref := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if ref == "" {
		return
	}
	s.Reference = ref
	s.HasReference = true
}

// Split separates voices that can be scored from those without a reference.
func (c *Corpus) Split() (usable []Sample, excluded []Excluded) {
	for _, v := range c.Voices {
		if v.HasReference {
			usable = append(usable, v)
			continue
		}
		excluded = append(excluded, Excluded{
			Sample: v,
			Err:    fmt.Errorf("%s: %w", v.ID, ErrMissingReference),
		})
	}
	return usable, excluded
}

// Validate checks that a sweep over the corpus would produce any records.
func (c *Corpus) Validate() error {
	if len(c.Noises) == 0 {
		return errors.New("no noise samples found")
	}
	usable, _ := c.Split()
	if len(usable) == 0 {
		return fmt.Errorf("no voice samples with a reference transcript (%d found without)", len(c.Voices))
	}
	return nil
}

// Filter keeps only samples whose ID is in ids. An empty ids keeps all.
func Filter(samples []Sample, ids []string) ([]Sample, error) {
	if len(ids) == 0 {
		return samples, nil
	}

	byID := make(map[string]Sample, len(samples))
	for _, s := range samples {
		byID[s.ID] = s
	}

	out := make([]Sample, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("sample %q not found", id)
		}
		out = append(out, s)
	}
	return out, nil
}
