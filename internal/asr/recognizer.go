// Package asr talks to the speech-recognition services under test.
package asr

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single recognition call when the model definition
// does not set one.
const DefaultTimeout = 300 * time.Second

// Recognizer transcribes an audio file.
type Recognizer interface {
	// Recognize returns the transcript of the WAV file at audioPath.
	// Failures are reported as *RecognitionError.
	Recognize(ctx context.Context, audioPath string) (string, error)

	// Name identifies the model in results and logs.
	Name() string
}

// Definition describes one recognition model endpoint.
type Definition struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type,omitempty"`
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	ResultField string        `yaml:"result_field,omitempty"`
}

// RecognitionError reports a failed recognition call: transport failure,
// non-success status, timeout or an unusable response body.
type RecognitionError struct {
	Model      string
	Path       string
	StatusCode int
	Err        error
}

func (e *RecognitionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("recognition by %s failed for %s (HTTP %d): %v", e.Model, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("recognition by %s failed for %s: %v", e.Model, e.Path, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
