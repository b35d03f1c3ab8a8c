package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const pwCatStopTimeout = 5 * time.Second

// pwCatStream pairs a pw-cat playback process fed through stdin with a
// pw-cat record process read from stdout. Samples travel as raw
// little-endian float32.
type pwCatStream struct {
	bin    string
	params DuplexParams

	inTarget  string
	outTarget string

	play *exec.Cmd
	rec  *exec.Cmd

	playIn io.WriteCloser
	recOut io.ReadCloser

	mu        sync.Mutex
	stderrBuf strings.Builder

	outBytes []byte
	inBytes  []byte
}

func newPWCatStream(bin string, params DuplexParams, inTarget, outTarget string) *pwCatStream {
	return &pwCatStream{
		bin:       bin,
		params:    params,
		inTarget:  inTarget,
		outTarget: outTarget,
	}
}

// pwCatArgs builds the pw-cat command line for one direction
func pwCatArgs(record bool, params DuplexParams, target string) []string {
	mode, channels := "--playback", params.OutputChannels
	if record {
		mode, channels = "--record", params.InputChannels
	}

	args := []string{
		mode,
		"--raw",
		"--format", "f32",
		"--rate", strconv.Itoa(int(params.SampleRate)),
		"--channels", strconv.Itoa(channels),
	}
	if params.FramesPerBuffer > 0 {
		args = append(args, "--latency", strconv.Itoa(params.FramesPerBuffer))
	}
	if target != "" {
		args = append(args, "--target", target)
	}
	return append(args, "-")
}

func (s *pwCatStream) command(record bool, target string) *exec.Cmd {
	cmd := exec.Command(s.bin, pwCatArgs(record, s.params, target)...)
	env := os.Environ()
	if s.params.FramesPerBuffer > 0 && s.params.SampleRate > 0 {
		env = append(env, fmt.Sprintf("PIPEWIRE_LATENCY=%d/%d", s.params.FramesPerBuffer, int(s.params.SampleRate)))
	}
	cmd.Env = env
	return cmd
}

// Start launches the recorder first so the head of the playback is captured
func (s *pwCatStream) Start() error {
	s.rec = s.command(true, s.inTarget)
	recOut, err := s.rec.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	recErr, err := s.rec.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	s.play = s.command(false, s.outTarget)
	playIn, err := s.play.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	playErr, err := s.play.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	slog.Debug("Starting pw-cat", "record", strings.Join(s.rec.Args, " "), "playback", strings.Join(s.play.Args, " "))

	if err := s.rec.Start(); err != nil {
		s.rec = nil
		return deviceErr("start", s.params.InputDevice, err)
	}
	if err := s.play.Start(); err != nil {
		s.play = nil
		return deviceErr("start", s.params.OutputDevice, err)
	}

	s.recOut = recOut
	s.playIn = playIn

	go s.readOutput(recErr, "record")
	go s.readOutput(playErr, "playback")
	return nil
}

// readOutput buffers a process's stderr for error reports
func (s *pwCatStream) readOutput(pipe io.ReadCloser, label string) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		s.mu.Lock()
		s.stderrBuf.WriteString(label + ": " + line + "\n")
		s.mu.Unlock()
		slog.Debug("pw-cat output", "stream", label, "line", line)
	}
}

func (s *pwCatStream) stderr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.stderrBuf.String())
}

func (s *pwCatStream) Write(out []float32) error {
	if s.playIn == nil {
		return deviceErr("write", s.params.OutputDevice, errors.New("stream not started"))
	}
	s.outBytes = encodeFloat32(s.outBytes, out)
	if _, err := s.playIn.Write(s.outBytes); err != nil {
		return deviceErr("write", s.params.OutputDevice, s.withStderr(err))
	}
	return nil
}

func (s *pwCatStream) Read(in []float32) error {
	if s.recOut == nil {
		return deviceErr("read", s.params.InputDevice, errors.New("stream not started"))
	}
	n := len(in) * 4
	if cap(s.inBytes) < n {
		s.inBytes = make([]byte, n)
	}
	s.inBytes = s.inBytes[:n]
	if _, err := io.ReadFull(s.recOut, s.inBytes); err != nil {
		return deviceErr("read", s.params.InputDevice, s.withStderr(err))
	}
	decodeFloat32(in, s.inBytes)
	return nil
}

func (s *pwCatStream) withStderr(err error) error {
	if out := s.stderr(); out != "" {
		return fmt.Errorf("%w (output: %s)", err, out)
	}
	return err
}

// Stop drains the playback process by closing its input, then interrupts
// the recorder.
func (s *pwCatStream) Stop() error {
	var err error
	if s.playIn != nil {
		_ = s.playIn.Close()
		s.playIn = nil
	}
	if s.play != nil {
		if werr := waitProcess(s.play, false); werr != nil {
			err = deviceErr("stop", s.params.OutputDevice, s.withStderr(werr))
		}
		s.play = nil
	}
	if s.rec != nil {
		if werr := waitProcess(s.rec, true); werr != nil && err == nil {
			err = deviceErr("stop", s.params.InputDevice, s.withStderr(werr))
		}
		s.rec = nil
		s.recOut = nil
	}
	return err
}

// Close kills whatever Stop left running
func (s *pwCatStream) Close() error {
	for _, cmd := range []*exec.Cmd{s.play, s.rec} {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}
	s.play, s.rec = nil, nil
	s.playIn, s.recOut = nil, nil
	return nil
}

// waitProcess waits for a pw-cat process to exit, interrupting it first
// when asked and killing it after a timeout.
func waitProcess(cmd *exec.Cmd, interrupt bool) error {
	if interrupt && cmd.Process != nil {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt to pw-cat, falling back to SIGKILL", "error", err)
			_ = cmd.Process.Kill()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil || !interrupt {
			return err
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ProcessState != nil {
			state := exitErr.ProcessState.String()
			if state == "signal: interrupt" || state == "signal: killed" {
				return nil
			}
		}
		return err

	case <-time.After(pwCatStopTimeout):
		slog.Warn("pw-cat did not exit within timeout, force killing")
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return nil
	}
}

func encodeFloat32(dst []byte, samples []float32) []byte {
	n := len(samples) * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return dst
}

func decodeFloat32(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
