// Package browser opens urls in the user's default browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens urls with the platform launcher.
type Opener struct {
	goos    string
	command func(name string, args ...string) *exec.Cmd
}

// New returns an Opener for the running platform.
func New() *Opener {
	return &Opener{goos: runtime.GOOS, command: exec.Command}
}

// Open starts the launcher for target without waiting for it.
func (o *Opener) Open(target string) error {
	name, args := launcher(o.goos, target)
	if err := o.command(name, args...).Start(); err != nil {
		return fmt.Errorf("open %s with %s: %w", target, name, err)
	}
	return nil
}

func launcher(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32.exe", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}
