package actions

import (
	"errors"
	"os/exec"
	"runtime"
)

// OpenURL opens a URL with the operating system's default handler. The
// spawned process is not waited on.
func OpenURL(url string) error {
	if url == "" {
		return errors.New("missing url")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		// start needs an explicit (empty) title argument.
		cmd = exec.Command("cmd", "/c", "start", "", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
