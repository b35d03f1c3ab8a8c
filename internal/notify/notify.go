// Package notify shows desktop notifications at the end of long runs.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

const appName = "asrbench"

// Notifier sends desktop notifications when enabled.
type Notifier struct {
	enabled bool
	send    func(title, message, icon string) error
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: beeep.Notify}
}

// SweepDone reports a finished sweep.
func (n *Notifier) SweepDone(records, failures int, tablePath string) {
	msg := fmt.Sprintf("%d results, %d failures\n%s", records, failures, tablePath)
	n.notify("sweep finished", msg)
}

// SweepFailed reports an aborted sweep.
func (n *Notifier) SweepFailed(err error) {
	msg := err.Error()
	if r := []rune(msg); len(r) > 100 {
		msg = string(r[:100]) + "..."
	}
	n.notify("sweep aborted", msg)
}

func (n *Notifier) notify(title, message string) {
	if n == nil || !n.enabled {
		return
	}
	// Notification errors are not worth failing a run over
	_ = n.send(appName+": "+title, message, "")
}
