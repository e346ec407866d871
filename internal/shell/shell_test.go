package shell

import (
	"bufio"
	"strings"
	"testing"
)

func TestNewSentinelIsUniqueAndPrefixed(t *testing.T) {
	a, err := newSentinel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := newSentinel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected two sentinels generated in sequence to differ")
	}
	if !strings.HasPrefix(a, "__AGENTCORE_SENTINEL_") {
		t.Fatalf("expected sentinel to carry the __AGENTCORE_SENTINEL_ prefix, got %q", a)
	}
}

func TestParseSentinelLineMatchesExitCode(t *testing.T) {
	sentinel := "__AGENTCORE_SENTINEL_deadbeef_"
	rc, ok := parseSentinelLine(sentinel+"0\n", sentinel)
	if !ok || rc != 0 {
		t.Fatalf("expected exit code 0, got rc=%d ok=%v", rc, ok)
	}

	rc, ok = parseSentinelLine(sentinel+"137\r\n", sentinel)
	if !ok || rc != 137 {
		t.Fatalf("expected exit code 137, got rc=%d ok=%v", rc, ok)
	}
}

func TestParseSentinelLineRejectsOrdinaryOutput(t *testing.T) {
	sentinel := "__AGENTCORE_SENTINEL_deadbeef_"
	if _, ok := parseSentinelLine("hello world\n", sentinel); ok {
		t.Fatal("expected ordinary output not to match the sentinel")
	}
	if _, ok := parseSentinelLine(sentinel+"not-a-number\n", sentinel); ok {
		t.Fatal("expected a non-numeric suffix not to match")
	}
}

func TestReadUntilSentinelSplitsStdoutAndStderr(t *testing.T) {
	sentinel := "__AGENTCORE_SENTINEL_deadbeef_"
	marker := sentinel + "OUT"
	stream := "hi\n" + marker + "\nsomething went wrong\n" + sentinel + "1\n"

	result, err := readUntilSentinel(bufio.NewReader(strings.NewReader(stream)), marker, sentinel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "hi\n" {
		t.Errorf("expected stdout %q, got %q", "hi\n", result.Output)
	}
	if result.Stderr != "something went wrong\n" {
		t.Errorf("expected stderr %q, got %q", "something went wrong\n", result.Stderr)
	}
	if result.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", result.ExitCode)
	}
}

func TestReadUntilSentinelReportsStreamClosedEarly(t *testing.T) {
	sentinel := "__AGENTCORE_SENTINEL_deadbeef_"
	marker := sentinel + "OUT"
	stream := "partial output\n"

	_, err := readUntilSentinel(bufio.NewReader(strings.NewReader(stream)), marker, sentinel)
	if err == nil {
		t.Fatal("expected an error when the stream closes before the sentinel appears")
	}
}
