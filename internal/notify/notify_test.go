package notify

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	title, message string
}

func capture(n *Notifier) *[]sent {
	var got []sent
	n.send = func(title, message, icon string) error {
		got = append(got, sent{title, message})
		return errors.New("no notification daemon")
	}
	return &got
}

func TestNotifier_Enabled(t *testing.T) {
	n := New(true)
	got := capture(n)

	n.SweepDone(12, 1, "/tmp/results.tsv")
	n.SweepFailed(errors.New(strings.Repeat("x", 150)))

	require.Len(t, *got, 2)
	assert.Equal(t, "asrbench: sweep finished", (*got)[0].title)
	assert.Contains(t, (*got)[0].message, "12 results, 1 failures")
	assert.Equal(t, "asrbench: sweep aborted", (*got)[1].title)
	assert.Len(t, (*got)[1].message, 103)
}

func TestNotifier_TruncatesOnRunes(t *testing.T) {
	n := New(true)
	got := capture(n)

	n.SweepFailed(errors.New(strings.Repeat("识别服务不可用", 20)))

	require.Len(t, *got, 1)
	msg := (*got)[0].message
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, 103, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestNotifier_Disabled(t *testing.T) {
	n := New(false)
	got := capture(n)

	n.SweepDone(1, 0, "x")
	assert.Empty(t, *got)

	var nilNotifier *Notifier
	nilNotifier.SweepDone(1, 0, "x")
}
