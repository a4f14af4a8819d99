package subprocess

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/regbot/internal/errors"
)

// resolveServerBinary locates the server executable for a command name.
//
// Names containing a path separator are tried directly. Bare names are
// searched in PATH first and then in the directory of the running
// executable, so an installed regchat finds its sibling regserver
// without any PATH setup.
func resolveServerBinary(log *slog.Logger, name string) (string, error) {
	path, lookErr := exec.LookPath(name)
	if lookErr == nil {
		log.Debug("Resolved server binary", "path", path)

		return path, nil
	}

	if !strings.ContainsRune(name, os.PathSeparator) {
		if sibling, ok := siblingBinary(name); ok {
			log.Debug("Resolved server binary next to executable", "path", sibling)

			return sibling, nil
		}
	}

	log.Warn("Server binary not found", "name", name, "error", lookErr)

	return "", &errors.ServerUnavailableError{
		Err: fmt.Errorf("locate server binary: %w", lookErr),
	}
}

// siblingBinary checks for the named binary next to the current
// executable.
func siblingBinary(name string) (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}

	candidate := filepath.Join(filepath.Dir(exe), name)

	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", false
	}

	// Regular file with at least one execute bit set.
	if info.Mode()&0o111 == 0 {
		return "", false
	}

	return candidate, true
}
