package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exts = []string{"wav", "mp3", "flac", "m4a"}

func touch(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func setup(t *testing.T) (string, string) {
	t.Helper()
	voice := t.TempDir()
	noise := t.TempDir()

	touch(t, voice, "b.wav", "")
	touch(t, voice, "b.txt", "  猫坐在垫子上\n")
	touch(t, voice, "a.mp3", "")
	touch(t, voice, "a.txt", "\ufeff你好")
	touch(t, voice, "c.flac", "")
	touch(t, voice, "notes.md", "ignored")
	touch(t, voice, ".hidden.wav", "")
	require.NoError(t, os.Mkdir(filepath.Join(voice, "sub.wav"), 0o755))

	touch(t, noise, "street.wav", "")
	touch(t, noise, "cafe.m4a", "")
	return voice, noise
}

func TestScan(t *testing.T) {
	voiceDir, noiseDir := setup(t)

	c, err := Scan(voiceDir, noiseDir, exts)
	require.NoError(t, err)

	require.Len(t, c.Voices, 3)
	assert.Equal(t, "a", c.Voices[0].ID)
	assert.Equal(t, "b", c.Voices[1].ID)
	assert.Equal(t, "c", c.Voices[2].ID)
	assert.Equal(t, filepath.Join(voiceDir, "a.mp3"), c.Voices[0].Path)

	assert.Equal(t, "你好", c.Voices[0].Reference)
	assert.Equal(t, "猫坐在垫子上", c.Voices[1].Reference)
	assert.False(t, c.Voices[2].HasReference)

	require.Len(t, c.Noises, 2)
	assert.Equal(t, "cafe", c.Noises[0].ID)
	assert.Equal(t, "street", c.Noises[1].ID)
}

func TestSplit(t *testing.T) {
	voiceDir, noiseDir := setup(t)
	c, err := Scan(voiceDir, noiseDir, exts)
	require.NoError(t, err)

	usable, excluded := c.Split()
	require.Len(t, usable, 2)
	require.Len(t, excluded, 1)
	assert.Equal(t, "c", excluded[0].Sample.ID)
	assert.ErrorIs(t, excluded[0].Err, ErrMissingReference)
	assert.NoError(t, c.Validate())
}

func TestEmptyReferenceIsMissing(t *testing.T) {
	voice := t.TempDir()
	touch(t, voice, "x.wav", "")
	touch(t, voice, "x.txt", "   \n")

	c, err := Scan(voice, voice, exts)
	require.NoError(t, err)
	assert.False(t, c.Voices[0].HasReference)
}

func TestValidate(t *testing.T) {
	c := &Corpus{Voices: []Sample{{ID: "v", HasReference: true}}}
	assert.Error(t, c.Validate())

	c = &Corpus{Voices: []Sample{{ID: "v"}}, Noises: []Sample{{ID: "n"}}}
	assert.Error(t, c.Validate())
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), t.TempDir(), exts)
	assert.Error(t, err)

	dup := t.TempDir()
	touch(t, dup, "a.wav", "")
	touch(t, dup, "a.mp3", "")
	_, err = Scan(dup, t.TempDir(), exts)
	assert.ErrorContains(t, err, "duplicate sample id")
}

func TestFilter(t *testing.T) {
	samples := []Sample{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	all, err := Filter(samples, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := Filter(samples, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []Sample{{ID: "c"}, {ID: "a"}}, some)

	_, err = Filter(samples, []string{"z"})
	assert.Error(t, err)
}
