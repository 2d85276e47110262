package capture

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(t *testing.T, enabled bool) *Manager {
	t.Helper()
	return &Manager{
		Enabled:    enabled,
		BinPath:    "tcpdump",
		Iface:      "lo",
		Port:       5555,
		ScratchDir: t.TempDir(),
		StartGrace: 10 * time.Millisecond,
		StopGrace:  10 * time.Millisecond,
		Logger:     testLogger(),
	}
}

// writeTestPcap writes a minimal valid pcap with n synthetic packets.
func writeTestPcap(t *testing.T, path string, n int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}

	payload := make([]byte, 60)
	for i := 0; i < n; i++ {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(payload),
			Length:        len(payload),
		}
		if err := w.WritePacket(ci, payload); err != nil {
			t.Fatal(err)
		}
	}
}

func TestManager_DisabledStart(t *testing.T) {
	m := testManager(t, false)

	sess := m.Start("baseline")
	if sess.State() != StateFailed {
		t.Errorf("State = %v, want failed", sess.State())
	}
	if sess.Reason() != ReasonCaptureUnavailable {
		t.Errorf("Reason = %q, want CaptureUnavailable", sess.Reason())
	}
	if sess.Finalized() {
		t.Error("disabled session must not be finalized")
	}
}

func TestManager_Disable(t *testing.T) {
	m := testManager(t, true)

	m.Disable()
	sess := m.Start("baseline")
	if sess.State() != StateFailed {
		t.Errorf("State = %v, want failed after Disable", sess.State())
	}
	if sess.Reason() != ReasonCaptureUnavailable {
		t.Errorf("Reason = %q, want CaptureUnavailable", sess.Reason())
	}
}

func TestManager_StopFailedSessionIsNoop(t *testing.T) {
	m := testManager(t, false)
	sess := m.Start("baseline")

	final := filepath.Join(t.TempDir(), "baseline.pcap")
	m.Stop(sess, final)
	m.Stop(sess, final) // second stop must also be a no-op

	if sess.State() != StateFailed {
		t.Errorf("State = %v, want failed", sess.State())
	}
	if _, err := os.Stat(final); err == nil {
		t.Error("no artifact should exist for a failed session")
	}
}

func TestManager_StopIdleSession(t *testing.T) {
	m := testManager(t, true)
	sess := &Session{Scenario: "x", ScratchPath: m.ScratchPath("x"), state: StateIdle}

	m.Stop(sess, filepath.Join(t.TempDir(), "x.pcap"))
	if sess.State() != StateFailed {
		t.Errorf("stopping an idle session should fail it, got %v", sess.State())
	}
	if sess.Reason() != ReasonCaptureFileMissing {
		t.Errorf("Reason = %q, want CaptureFileMissing", sess.Reason())
	}
}

func TestManager_FinalizeRelocates(t *testing.T) {
	m := testManager(t, true)
	sess := &Session{Scenario: "loss_5pct", ScratchPath: m.ScratchPath("loss_5pct")}

	writeTestPcap(t, sess.ScratchPath, 3)

	final := filepath.Join(t.TempDir(), "captures", "loss_5pct.pcap")
	if err := m.finalize(sess, final); err != nil {
		t.Fatalf("finalize returned error: %v", err)
	}

	// Destination exists, non-empty, and the packet count survived.
	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("destination is empty")
	}
	if sess.Bytes != info.Size() {
		t.Errorf("Bytes = %d, want %d", sess.Bytes, info.Size())
	}
	if sess.Packets != 3 {
		t.Errorf("Packets = %d, want 3", sess.Packets)
	}

	// Scratch is gone: relocation is copy-then-delete.
	if _, err := os.Stat(sess.ScratchPath); !os.IsNotExist(err) {
		t.Error("scratch file should be removed after relocation")
	}
}

func TestManager_FinalizeEmptyScratch(t *testing.T) {
	m := testManager(t, true)
	sess := &Session{Scenario: "empty", ScratchPath: m.ScratchPath("empty")}

	if err := os.WriteFile(sess.ScratchPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	final := filepath.Join(t.TempDir(), "empty.pcap")
	if err := m.finalize(sess, final); err == nil {
		t.Fatal("finalize of an empty scratch file should error")
	}
	if _, err := os.Stat(final); err == nil {
		t.Error("no destination artifact should exist for an empty capture")
	}
}

func TestManager_FinalizeMissingScratch(t *testing.T) {
	m := testManager(t, true)
	sess := &Session{Scenario: "ghost", ScratchPath: m.ScratchPath("ghost")}

	if err := m.finalize(sess, filepath.Join(t.TempDir(), "ghost.pcap")); err == nil {
		t.Error("finalize without a scratch file should error")
	}
}

func TestManager_StartFailureBadBinary(t *testing.T) {
	m := testManager(t, true)
	m.BinPath = filepath.Join(t.TempDir(), "definitely-not-tcpdump")

	sess := m.Start("baseline")
	if sess.State() != StateFailed {
		t.Errorf("State = %v, want failed", sess.State())
	}
	if sess.Reason() != ReasonCaptureStartFailure {
		t.Errorf("Reason = %q, want CaptureStartFailure", sess.Reason())
	}
}

func TestSession_FailFirstReasonWins(t *testing.T) {
	sess := &Session{state: StateCapturing}
	sess.fail(ReasonCaptureStartFailure)
	sess.fail(ReasonCaptureFileMissing)

	if sess.Reason() != ReasonCaptureStartFailure {
		t.Errorf("Reason = %q, first failure should win", sess.Reason())
	}
}

func TestState_String(t *testing.T) {
	testCases := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateCapturing, "capturing"},
		{StateStopping, "stopping"},
		{StateFinalized, "finalized"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}
	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.expected {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.expected)
		}
	}
}
