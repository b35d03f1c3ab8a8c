package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/dither"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/multierr"
)

// DefaultExtensions are the audio formats accepted when none are configured.
var DefaultExtensions = []string{"wav", "mp3", "flac", "m4a"}

// Codec decodes audio files to normalized PCM and encodes captures as WAV.
type Codec struct {
	// FFmpegPath and FFprobePath locate the tools used for compressed formats.
	FFmpegPath  string
	FFprobePath string

	// BitDepth of encoded WAV files.
	BitDepth int
}

// NewCodec returns a codec that writes 16-bit WAV and finds ffmpeg on PATH.
func NewCodec() *Codec {
	return &Codec{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		BitDepth:    16,
	}
}

// IsSupported reports whether path has one of the given extensions.
// Extensions are compared without the leading dot and case-insensitively.
func IsSupported(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Decode reads an audio file into a normalized buffer at its native rate and
// channel count. WAV files are parsed in-process; everything else, and WAV
// variants the parser rejects, go through ffmpeg.
func (c *Codec) Decode(ctx context.Context, path string) (Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := decodeWAV(path)
		if err == nil {
			return buf, nil
		}
		slog.Debug("WAV parser rejected file, falling back to ffmpeg", "path", path, "error", err)
	}
	return c.decodeFFmpeg(ctx, path)
}

func decodeWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("invalid WAV file: %s", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return Buffer{}, fmt.Errorf("WAV file %s has no channel information", path)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		for i := range pcm.Data {
			pcm.Data[i] -= 128
		}
	}

	return Buffer{
		Samples:    intsToFloat(pcm.Data, bitDepth),
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
		BitDepth:   bitDepth,
	}, nil
}

type streamFormat struct {
	SampleRate int
	Channels   int
}

// streamInfo reads the first audio stream's rate and channel count with ffprobe
func (c *Codec) streamInfo(ctx context.Context, path string) (streamFormat, error) {
	cmd := exec.CommandContext(ctx, c.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return streamFormat{}, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	return parseStreamInfo(output)
}

func parseStreamInfo(output []byte) (streamFormat, error) {
	var info struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &info); err != nil {
		return streamFormat{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, s := range info.Streams {
		if s.CodecType != "audio" {
			continue
		}
		rate, err := strconv.Atoi(s.SampleRate)
		if err != nil || rate <= 0 {
			return streamFormat{}, fmt.Errorf("invalid sample rate %q", s.SampleRate)
		}
		if s.Channels <= 0 {
			return streamFormat{}, fmt.Errorf("invalid channel count %d", s.Channels)
		}
		return streamFormat{SampleRate: rate, Channels: s.Channels}, nil
	}
	return streamFormat{}, fmt.Errorf("no audio stream found")
}

func (c *Codec) decodeFFmpeg(ctx context.Context, path string) (Buffer, error) {
	format, err := c.streamInfo(ctx, path)
	if err != nil {
		return Buffer{}, err
	}

	logLevel := "error"
	if v := os.Getenv("FFMPEG_LOGLEVEL"); v != "" {
		logLevel = v
	}

	cmd := exec.CommandContext(ctx, c.FFmpegPath,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-loglevel", logLevel,
		"pipe:1",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if logLevel != "error" && stderr.Len() > 0 {
		slog.Debug("ffmpeg output", "path", path, "stderr", stderr.String())
	}
	if err != nil {
		return Buffer{}, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return Buffer{
		Samples:    pcm16ToFloat(out, format.Channels),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   16,
	}, nil
}

// pcm16ToFloat converts little-endian s16 bytes, dropping any trailing
// partial frame.
func pcm16ToFloat(raw []byte, channels int) []float64 {
	frameBytes := 2 * channels
	raw = raw[:len(raw)-len(raw)%frameBytes]

	ints := make([]int, len(raw)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2])))
	}
	return intsToFloat(ints, 16)
}

// intsToFloat maps integer samples to the mid-rise scale used by the
// quantizer, so decode followed by EncodeWAV reproduces the original codes.
// Code 0 decodes to half a step above zero (about -96 dBFS at 16 bits).
func intsToFloat(data []int, bitDepth int) []float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Exp2(float64(bitDepth-1)) - 0.5

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = (float64(v) + 0.5) / scale
	}
	return out
}

// EncodeWAV writes buf as integer PCM WAV. Samples are limited to the
// representable range before integer conversion.
func (c *Codec) EncodeWAV(path string, buf Buffer) (err error) {
	if buf.Channels <= 0 || buf.SampleRate <= 0 {
		return fmt.Errorf("cannot encode buffer with %d channels at %d Hz", buf.Channels, buf.SampleRate)
	}

	bitDepth := c.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}

	ints, err := quantize(buf, bitDepth)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	enc := wav.NewEncoder(f, buf.SampleRate, bitDepth, buf.Channels, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	slog.Debug("Wrote WAV", "path", path, "frames", buf.FrameCount(), "sample_rate", buf.SampleRate)
	return nil
}

// quantize converts without dither or noise shaping so encoding is
// deterministic.
func quantize(buf Buffer, bitDepth int) ([]int, error) {
	q, err := dither.NewQuantizer(float64(buf.SampleRate),
		dither.WithBitDepth(bitDepth),
		dither.WithDitherType(dither.DitherNone),
		dither.WithFIRPreset(dither.PresetNone),
		dither.WithLimit(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create quantizer: %w", err)
	}

	out := make([]int, len(buf.Samples))
	for i, v := range buf.Samples {
		switch {
		case math.IsNaN(v):
			v = 0
		case math.IsInf(v, 0):
			v = math.Copysign(1, v)
		}
		out[i] = q.ProcessInteger(v)
	}
	return out, nil
}
