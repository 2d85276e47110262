// Package preflight provides startup validation checks.
//
// Only missing hard dependencies (the collaborator executables, a
// writable results root) fail preflight and abort the batch. Missing tc
// or tcpdump downgrades the corresponding capability instead: the batch
// still produces labeled runs, just without kernel impairment or capture.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gridclash/netharness/internal/process"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal, degrades a capability)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool

	// Capability downgrades derived from the warnings.
	KernelImpairment bool
	CaptureAvailable bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(serverCmd, clientCmd, tcPath, tcpdumpPath, resultsRoot string) *Result {
	result := &Result{
		Passed:           true,
		KernelImpairment: true,
		CaptureAvailable: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkCommand("server_runtime", serverCmd))
	add(checkCommand("client_runtime", clientCmd))

	tc := checkTool("tc", tcPath)
	add(tc)
	if tc.Warning {
		result.KernelImpairment = false
	}

	td := checkTool("tcpdump", tcpdumpPath)
	add(td)
	if td.Warning {
		result.CaptureAvailable = false
	}

	add(checkPrivilege())
	add(checkResultsRoot(resultsRoot))

	return result
}

// checkCommand verifies a collaborator command's binary resolves. A
// missing server or client runtime is fatal: no run could even start.
func checkCommand(name, cmd string) Check {
	argv, err := process.ParseCommand(cmd)
	if err != nil {
		return Check{Name: name, Passed: false, Message: err.Error()}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("%s not found: %v", argv[0], err),
		}
	}

	// When the command is an interpreter plus a script, the script must
	// exist too.
	if len(argv) > 1 && looksLikeFile(argv[1]) {
		if _, err := os.Stat(argv[1]); err != nil {
			return Check{
				Name:    name,
				Passed:  false,
				Message: fmt.Sprintf("%s: %v", argv[1], err),
			}
		}
	}

	return Check{Name: name, Passed: true, Message: fmt.Sprintf("found at %s", path)}
}

// looksLikeFile guesses whether an argument names a script rather than
// an interpreter flag.
func looksLikeFile(arg string) bool {
	return len(arg) > 0 && arg[0] != '-' && filepath.Ext(arg) != ""
}

// checkTool probes an optional tool. Absence is a warning that
// downgrades a capability, never a batch failure.
func checkTool(name, path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("not found (%s); capability disabled", path),
		}
	}
	return Check{Name: name, Passed: true, Message: fmt.Sprintf("found at %s", resolved)}
}

// checkPrivilege warns when the harness is not running as root: netem
// and capture then typically degrade at apply time.
func checkPrivilege() Check {
	if os.Geteuid() == 0 {
		return Check{Name: "privilege", Passed: true, Message: "running as root"}
	}
	return Check{
		Name:    "privilege",
		Passed:  true,
		Warning: true,
		Message: "not root; netem/capture may be refused at run time",
	}
}

// checkResultsRoot verifies the results root can be created and written.
func checkResultsRoot(root string) Check {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Check{Name: "results_dir", Passed: false, Message: err.Error()}
	}

	probe := filepath.Join(root, ".preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Check{Name: "results_dir", Passed: false, Message: err.Error()}
	}
	os.Remove(probe)

	return Check{Name: "results_dir", Passed: true, Message: root + " writable"}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
	}
	fmt.Println()
}
