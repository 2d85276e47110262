package process

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ServerCommand builds the game server command line.
type ServerCommand struct {
	// Base is the shlex-split command prefix (binary plus fixed args).
	Base []string

	// Port is the UDP port the server listens on.
	Port int

	// LossFraction, when > 0, is passed as the software-loss fallback
	// argument. Set when kernel-level impairment is unavailable.
	LossFraction float64
}

// NewServerCommand parses the configured server command string.
func NewServerCommand(cmd string, port int) (*ServerCommand, error) {
	base, err := ParseCommand(cmd)
	if err != nil {
		return nil, err
	}
	return &ServerCommand{Base: base, Port: port}, nil
}

// Binary returns the executable the command will run.
func (s *ServerCommand) Binary() string {
	return s.Base[0]
}

// Args returns the full argv after the binary.
func (s *ServerCommand) Args() []string {
	args := append([]string{}, s.Base[1:]...)
	args = append(args, "--port", strconv.Itoa(s.Port))
	if s.LossFraction > 0 {
		args = append(args, "--loss", strconv.FormatFloat(s.LossFraction, 'f', -1, 64))
	}
	return args
}

// Build creates an exec.Cmd for the server.
func (s *ServerCommand) Build(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, s.Binary(), s.Args()...)
}

// String returns the full command line, for logging.
func (s *ServerCommand) String() string {
	return fmt.Sprintf("%s %s", s.Binary(), strings.Join(s.Args(), " "))
}
