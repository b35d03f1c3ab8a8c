package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/measure/loudness"
	dsptime "github.com/cwbudde/algo-dsp/stats/time"
	"go.uber.org/multierr"
)

// DefaultFramesPerBuffer is the duplex chunk size when none is configured.
const DefaultFramesPerBuffer = 1024

// Status represents the current state of the rig
type Status string

const (
	StatusIdle  Status = "IDLE"
	StatusBusy  Status = "BUSY"
	StatusError Status = "ERROR"
)

// RigConfig selects the physical devices of the test rig.
type RigConfig struct {
	InputDevice     string
	OutputDevice    string
	FramesPerBuffer int
}

// CaptureInfo describes the last completed capture.
type CaptureInfo struct {
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Frames       int           `json:"frames"`
	RMSdBFS      float64       `json:"rms_dbfs"`
	LoudnessLUFS float64       `json:"loudness_lufs"`
}

// Rig is the loudspeaker/microphone pair. It is an exclusive resource: only
// one PlayAndRecord runs at a time and the device is always released before
// the call returns.
type Rig struct {
	backend Backend
	cfg     RigConfig

	mu sync.Mutex

	statusMu sync.RWMutex
	status   Status
	last     *CaptureInfo
}

// NewRig creates a rig on top of a backend
func NewRig(backend Backend, cfg RigConfig) *Rig {
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	return &Rig{
		backend: backend,
		cfg:     cfg,
		status:  StatusIdle,
	}
}

// CheckDevices verifies that the configured input and output devices exist.
func (r *Rig) CheckDevices() error {
	if err := r.backend.ValidateDevice(r.cfg.OutputDevice, false); err != nil {
		return asDeviceErr("check output", r.cfg.OutputDevice, err)
	}
	if err := r.backend.ValidateDevice(r.cfg.InputDevice, true); err != nil {
		return asDeviceErr("check input", r.cfg.InputDevice, err)
	}
	return nil
}

// GetStatus returns the rig state and the last capture, if any.
func (r *Rig) GetStatus() (Status, *CaptureInfo) {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status, r.last
}

// PlayAndRecord plays mixed through the output device while capturing the
// input device at the same rate. It blocks for the clip duration and returns
// a mono capture with exactly mixed.FrameCount() frames. Frame 0 of the
// capture corresponds to the first played frame, up to the fixed latency of
// the duplex stream. Cancelling ctx stops the stream at the next chunk
// boundary.
func (r *Rig) PlayAndRecord(ctx context.Context, mixed Buffer) (captured Buffer, err error) {
	total := mixed.FrameCount()
	if total == 0 || mixed.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("nothing to play: %d frames at %d Hz", total, mixed.SampleRate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.setStatus(StatusBusy, nil)
	defer func() {
		if err != nil {
			r.setStatus(StatusError, nil)
		}
	}()

	fpb := r.cfg.FramesPerBuffer
	outCh := mixed.Channels

	stream, err := r.backend.OpenDuplex(DuplexParams{
		InputDevice:     r.cfg.InputDevice,
		OutputDevice:    r.cfg.OutputDevice,
		InputChannels:   1,
		OutputChannels:  outCh,
		SampleRate:      float64(mixed.SampleRate),
		FramesPerBuffer: fpb,
	})
	if err != nil {
		return Buffer{}, asDeviceErr("open", r.cfg.OutputDevice, err)
	}
	defer func() {
		err = multierr.Append(err, deviceErr("close", r.cfg.OutputDevice, stream.Close()))
	}()

	if err := stream.Start(); err != nil {
		return Buffer{}, deviceErr("start", r.cfg.OutputDevice, err)
	}

	start := time.Now()
	out := make([]float32, fpb*outCh)
	in := make([]float32, fpb)
	samples := make([]float64, 0, total)

	for pos := 0; pos < total; pos += fpb {
		if err := ctx.Err(); err != nil {
			_ = stream.Stop()
			return Buffer{}, err
		}

		n := min(fpb, total-pos)
		fillOutput(out, mixed.Frames(pos, pos+n).Samples)

		if err := stream.Write(out); err != nil {
			_ = stream.Stop()
			return Buffer{}, deviceErr("write", r.cfg.OutputDevice, err)
		}
		if err := stream.Read(in); err != nil {
			_ = stream.Stop()
			return Buffer{}, deviceErr("read", r.cfg.InputDevice, err)
		}
		for _, v := range in[:n] {
			samples = append(samples, float64(v))
		}
	}

	if err := stream.Stop(); err != nil {
		return Buffer{}, deviceErr("stop", r.cfg.OutputDevice, err)
	}

	captured = Buffer{
		Samples:    samples,
		SampleRate: mixed.SampleRate,
		Channels:   1,
		BitDepth:   mixed.BitDepth,
	}

	info := measureCapture(captured)
	info.StartTime = start
	info.Duration = time.Since(start)
	r.setStatus(StatusIdle, &info)

	slog.Debug("Capture completed",
		"frames", info.Frames,
		"elapsed", info.Duration,
		"rms_dbfs", info.RMSdBFS,
		"loudness_lufs", info.LoudnessLUFS)

	return captured, nil
}

func (r *Rig) setStatus(s Status, info *CaptureInfo) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status = s
	if info != nil {
		r.last = info
	}
}

// fillOutput converts to float32 for the hardware, clamping to full scale and
// zero-padding a short final chunk.
func fillOutput(dst []float32, src []float64) {
	for i, v := range src {
		dst[i] = float32(core.Clamp(v, -1, 1))
	}
	for i := len(src); i < len(dst); i++ {
		dst[i] = 0
	}
}

func measureCapture(b Buffer) CaptureInfo {
	meter := loudness.NewMeter(
		loudness.WithSampleRate(float64(b.SampleRate)),
		loudness.WithChannels(1),
	)
	meter.StartIntegration()
	meter.ProcessBlock(b.Samples)

	return CaptureInfo{
		Frames:       b.FrameCount(),
		RMSdBFS:      core.LinearToDB(dsptime.RMS(b.Samples)),
		LoudnessLUFS: meter.Integrated(),
	}
}

func asDeviceErr(op, device string, err error) error {
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	return deviceErr(op, device, err)
}
