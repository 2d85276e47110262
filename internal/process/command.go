// Package process builds the commands for the opaque collaborator
// executables: the game server and the headless game clients.
package process

import (
	"fmt"

	"github.com/google/shlex"
)

// ParseCommand splits a configured command string into argv, honoring
// shell-style quoting ("python3 server_optimized.py" -> two words).
func ParseCommand(cmd string) ([]string, error) {
	argv, err := shlex.Split(cmd)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", cmd, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("parse command %q: empty command", cmd)
	}
	return argv, nil
}
