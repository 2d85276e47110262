package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ClientCommand builds the game client command line. Clients always run
// headless: the harness never drives an interactive client.
type ClientCommand struct {
	// Base is the shlex-split command prefix.
	Base []string

	// ServerAddr is the address the client connects to.
	ServerAddr string
}

// NewClientCommand parses the configured client command string.
func NewClientCommand(cmd, serverAddr string) (*ClientCommand, error) {
	base, err := ParseCommand(cmd)
	if err != nil {
		return nil, err
	}
	return &ClientCommand{Base: base, ServerAddr: serverAddr}, nil
}

// Binary returns the executable the command will run.
func (c *ClientCommand) Binary() string {
	return c.Base[0]
}

// Args returns the full argv after the binary.
func (c *ClientCommand) Args() []string {
	args := append([]string{}, c.Base[1:]...)
	args = append(args, c.ServerAddr, "--headless")
	return args
}

// Build creates an exec.Cmd for one client.
func (c *ClientCommand) Build(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, c.Binary(), c.Args()...)
}

// String returns the full command line, for logging.
func (c *ClientCommand) String() string {
	return fmt.Sprintf("%s %s", c.Binary(), strings.Join(c.Args(), " "))
}
