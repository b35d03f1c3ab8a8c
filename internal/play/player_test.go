package play

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func only(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestFindAudioPlayer(t *testing.T) {
	p := &Player{lookPath: only("aplay", "mpv")}
	got, err := p.findAudioPlayer()
	require.NoError(t, err)
	assert.Equal(t, "mpv", got)

	p = &Player{lookPath: only()}
	_, err = p.findAudioPlayer()
	assert.ErrorContains(t, err, "no audio player found")
}

func TestPlayerArgs(t *testing.T) {
	assert.Equal(t, []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "a.wav"}, playerArgs("ffplay", "a.wav"))
	assert.Equal(t, []string{"aplay", "a.wav"}, playerArgs("aplay", "a.wav"))
}

func TestPlay_MissingFile(t *testing.T) {
	p := &Player{lookPath: only("ffplay")}
	err := p.Play(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorContains(t, err, "audio file not found")
}

func TestPlay_NoPlayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	p := &Player{lookPath: only()}
	err := p.Play(context.Background(), path)
	assert.ErrorContains(t, err, "no suitable audio player found")
}
