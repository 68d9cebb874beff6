package cli

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func goExe() string {
	if runtime.GOOS == "windows" {
		return "go.exe"
	}
	return "go"
}

func buildCatalogPullBinary(t *testing.T) string {
	t.Helper()

	outPath := filepath.Join(t.TempDir(), "catalogpull-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}

	cmd := exec.Command(goExe(), "build", "-o", outPath, "./cmd/catalogpull")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build catalogpull binary: %v; output=%s", err, string(out))
	}

	return outPath
}

func requireExitCode(t *testing.T, err error, out []byte, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected non-zero exit; output=%s", string(out))
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v; output=%s", err, err, string(out))
	}
	if code := exitErr.ProcessState.ExitCode(); code != want {
		t.Fatalf("expected exit code %d, got %d; output=%s", want, code, string(out))
	}
}

func TestPull_ExitCode3_WhenOldServerMissing(t *testing.T) {
	binary := buildCatalogPullBinary(t)
	cmd := exec.Command(binary, "pull", "/tmp/old", "/tmp/new", "kernel=Linux")

	out, err := cmd.CombinedOutput()
	requireExitCode(t, err, out, 3)
	if !strings.Contains(string(out), "--old-server is required") {
		t.Fatalf("expected validation message; output=%s", string(out))
	}
}

func TestPull_ExitCode3_WhenOutFormatCannotBeInferred(t *testing.T) {
	binary := buildCatalogPullBinary(t)
	cmd := exec.Command(binary, "pull", "/tmp/old", "/tmp/new", "--old-server", "puppet-old", "--out", "results.unknown")

	out, err := cmd.CombinedOutput()
	requireExitCode(t, err, out, 3)
	if !strings.Contains(string(out), "cannot infer output format") {
		t.Fatalf("expected output format inference error; output=%s", string(out))
	}
}

func TestPull_ExitCode3_WhenQueryMalformed(t *testing.T) {
	binary := buildCatalogPullBinary(t)
	cmd := exec.Command(binary, "pull", "/tmp/old", "/tmp/new", "=Linux", "--old-server", "puppet-old")

	out, err := cmd.CombinedOutput()
	requireExitCode(t, err, out, 3)
}

func TestPull_ExitCode3_WhenServerUnreachable(t *testing.T) {
	binary := buildCatalogPullBinary(t)
	dir := t.TempDir()
	cmd := exec.Command(binary, "pull", filepath.Join(dir, "old"), filepath.Join(dir, "new"), "kernel=Linux",
		"--old-server", "http://127.0.0.1:1", "--new-server", "http://127.0.0.1:1", "--yamldir", dir)

	out, err := cmd.CombinedOutput()
	requireExitCode(t, err, out, 3)
	if strings.Contains(string(out), "panic") {
		t.Fatalf("unexpected panic; output=%s", string(out))
	}
}

func TestPull_Help_DocumentsOutputAndExitCodes(t *testing.T) {
	binary := buildCatalogPullBinary(t)
	cmd := exec.Command(binary, "pull", "--help")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("expected zero exit; err=%v; output=%s", err, string(out))
	}

	s := string(out)
	required := []string{
		"Output:",
		"Exit codes:",
		"NDJSON mode emits",
		"run.started",
		"node.seeded",
		"run.finished",
		"--old-server",
		"--threads",
	}
	for _, r := range required {
		if !strings.Contains(s, r) {
			t.Fatalf("expected pull --help to contain %q; output=%s", r, s)
		}
	}
}

func TestVersion_PrintsBuildInfo(t *testing.T) {
	binary := buildCatalogPullBinary(t)
	out, err := exec.Command(binary, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("expected zero exit; err=%v; output=%s", err, string(out))
	}
	if !strings.HasPrefix(string(out), "catalogpull dev\n") {
		t.Fatalf("unexpected version output: %s", string(out))
	}
}
