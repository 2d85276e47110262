package process

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
		wantErr  bool
	}{
		{"simple", "python3 server_optimized.py", []string{"python3", "server_optimized.py"}, false},
		{"single word", "server", []string{"server"}, false},
		{"quoted arg", `python3 "my server.py"`, []string{"python3", "my server.py"}, false},
		{"flags", "python3 server.py --debug", []string{"python3", "server.py", "--debug"}, false},
		{"empty", "", nil, true},
		{"whitespace only", "   ", nil, true},
		{"unterminated quote", `python3 "server.py`, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			argv, err := ParseCommand(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCommand(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if len(argv) != len(tc.expected) {
				t.Fatalf("argv = %v, want %v", argv, tc.expected)
			}
			for i := range argv {
				if argv[i] != tc.expected[i] {
					t.Errorf("argv[%d] = %q, want %q", i, argv[i], tc.expected[i])
				}
			}
		})
	}
}

func TestServerCommand_Args(t *testing.T) {
	s, err := NewServerCommand("python3 server_optimized.py", 5555)
	if err != nil {
		t.Fatal(err)
	}

	if s.Binary() != "python3" {
		t.Errorf("Binary = %q, want python3", s.Binary())
	}

	args := strings.Join(s.Args(), " ")
	if args != "server_optimized.py --port 5555" {
		t.Errorf("Args = %q", args)
	}
}

func TestServerCommand_SoftwareLoss(t *testing.T) {
	s, err := NewServerCommand("python3 server.py", 6000)
	if err != nil {
		t.Fatal(err)
	}
	s.LossFraction = 0.05

	args := strings.Join(s.Args(), " ")
	if !strings.Contains(args, "--loss 0.05") {
		t.Errorf("Args = %q, want --loss 0.05", args)
	}

	// Zero loss must not emit the flag at all.
	s.LossFraction = 0
	args = strings.Join(s.Args(), " ")
	if strings.Contains(args, "--loss") {
		t.Errorf("Args = %q, should omit --loss when zero", args)
	}
}

func TestClientCommand_Args(t *testing.T) {
	c, err := NewClientCommand("python3 client.py", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}

	args := strings.Join(c.Args(), " ")
	if args != "client.py 127.0.0.1 --headless" {
		t.Errorf("Args = %q", args)
	}
}

func TestCommand_String(t *testing.T) {
	s, _ := NewServerCommand("python3 server.py", 5555)
	if got := s.String(); got != "python3 server.py --port 5555" {
		t.Errorf("String() = %q", got)
	}

	c, _ := NewClientCommand("python3 client.py", "127.0.0.1")
	if got := c.String(); got != "python3 client.py 127.0.0.1 --headless" {
		t.Errorf("String() = %q", got)
	}
}
