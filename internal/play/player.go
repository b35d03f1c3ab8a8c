package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// players lists the external players tried, in order of preference
var players = []string{"ffplay", "mpv", "vlc", "aplay"}

// Player auditions audio files through the first external player found in PATH
type Player struct {
	lookPath func(string) (string, error)
}

func New() *Player {
	return &Player{lookPath: exec.LookPath}
}

// Play blocks until the file has been played or ctx is cancelled
func (p *Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %s", path)
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	args := playerArgs(player, path)
	slog.Debug("Starting player", "command", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}
	return nil
}

func playerArgs(player, path string) []string {
	switch player {
	case "ffplay":
		return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", path}
	case "mpv":
		return []string{"mpv", "--no-video", "--really-quiet", path}
	case "vlc":
		return []string{"vlc", "--intf", "dummy", "--play-and-exit", path}
	default:
		// Mixes are always WAV, which aplay handles directly
		return []string{player, path}
	}
}

func (p *Player) findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
