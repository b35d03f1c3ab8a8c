package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
)

const (
	// DefaultResultField is the JSON field holding the transcript.
	DefaultResultField = "result"

	uploadField    = "file"
	uploadFileName = "audio.wav"
	maxErrorBody   = 512
)

// HTTPRecognizer posts the audio file as multipart form data and reads the
// transcript from a JSON response.
type HTTPRecognizer struct {
	def        Definition
	httpClient *http.Client
}

// NewHTTPRecognizer creates a recognizer for an HTTP model definition.
func NewHTTPRecognizer(def Definition) (*HTTPRecognizer, error) {
	if def.URL == "" {
		return nil, fmt.Errorf("model %s: url is required", def.Name)
	}
	if def.Timeout <= 0 {
		def.Timeout = DefaultTimeout
	}
	if def.ResultField == "" {
		def.ResultField = DefaultResultField
	}

	return &HTTPRecognizer{
		def:        def,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the model name
func (r *HTTPRecognizer) Name() string {
	return r.def.Name
}

// Recognize uploads audioPath and returns the transcript. There is no retry.
func (r *HTTPRecognizer) Recognize(ctx context.Context, audioPath string) (string, error) {
	fail := func(status int, err error) (string, error) {
		return "", &RecognitionError{Model: r.def.Name, Path: audioPath, StatusCode: status, Err: err}
	}

	body, contentType, err := multipartBody(audioPath)
	if err != nil {
		return fail(0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.def.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.def.URL, body)
	if err != nil {
		return fail(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	slog.Debug("Sending recognition request", "model", r.def.Name, "url", r.def.URL, "file", audioPath)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(0, fmt.Errorf("timed out after %s: %w", r.def.Timeout, context.DeadlineExceeded))
		}
		return fail(0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status: %s", snippet(data)))
	}

	text, err := extractField(data, r.def.ResultField)
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	slog.Debug("Recognition completed", "model", r.def.Name, "file", audioPath, "chars", len([]rune(text)))
	return text, nil
}

func multipartBody(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFileName))
	h.Set("Content-Type", "audio/wav")

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func extractField(data []byte, field string) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	raw, ok := payload[field]
	if !ok {
		return "", fmt.Errorf("response has no %q field", field)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("field %q is not a string: %w", field, err)
	}
	return text, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if r := []rune(s); len(r) > maxErrorBody {
		s = string(r[:maxErrorBody]) + "..."
	}
	return s
}
