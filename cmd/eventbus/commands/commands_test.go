package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath, logLevel = "", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSoak(t *testing.T) {
	out, err := execute(t, "soak", "-n", "200", "--log-level", "error")
	if err != nil {
		t.Fatalf("soak failed: %v\n%s", err, out)
	}

	// 200 events split evenly across disk, net, unsourced and ticks.
	for _, want := range []string{`all\s+150`, `disk\s+50`, `unsourced\s+50`, `ticks\s+50`} {
		if !regexp.MustCompile(want).MatchString(out) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "BUS") || !strings.Contains(out, "main") {
		t.Errorf("expected bus statistics:\n%s", out)
	}
}

func TestSoak_UnknownBus(t *testing.T) {
	if _, err := execute(t, "soak", "--bus", "nope", "--log-level", "error"); err == nil {
		t.Error("expected an error for an uninstalled bus")
	}
	soakBus = "main"
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.toml")
	if err := os.WriteFile(path, []byte("[bus]\nqueue_limit = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "-c", path, "--log-level", "error")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, "queue_limit: 42") {
		t.Errorf("expected queue_limit in output:\n%s", out)
	}
}
