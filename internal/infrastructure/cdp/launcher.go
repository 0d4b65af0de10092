package cdp

import (
	"fmt"
	"net/url"

	"github.com/go-rod/rod/lib/launcher"
)

// LaunchConfig controls the locally launched browser process.
type LaunchConfig struct {
	Headless  bool
	NoSandbox bool
}

// Launcher owns a locally launched browser process. Used when no DevTools URL
// is configured; Dial then attaches to the process's debugging endpoint.
type Launcher struct {
	l *launcher.Launcher
}

// Launch starts a browser with remote debugging enabled and returns the
// launcher and the HTTP DevTools endpoint for Dial.
func Launch(cfg LaunchConfig) (*Launcher, string, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, "", fmt.Errorf("%w: launch browser: %v", ErrConnection, err)
	}

	// The control URL is the browser websocket; the HTTP endpoint shares its host.
	parsed, err := url.Parse(controlURL)
	if err != nil {
		l.Kill()
		l.Cleanup()
		return nil, "", fmt.Errorf("%w: parse control url: %v", ErrConnection, err)
	}

	return &Launcher{l: l}, "http://" + parsed.Host, nil
}

// Close kills the browser process and removes its temp profile.
func (lc *Launcher) Close() {
	lc.l.Kill()
	lc.l.Cleanup()
}
