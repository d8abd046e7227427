package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser launches the default browser so the user can approve the OAuth
// request. The caller logs the URL as a fallback when this fails.
func OpenBrowser(url string) error {
	var name string
	args := []string{url}

	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "cmd"
		args = []string{"/c", "start", url}
	default:
		name = "xdg-open"
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
