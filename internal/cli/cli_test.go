package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	_ "time/tzdata"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := Execute(context.Background())
	return out.String(), err
}

func TestVAPIDKeysCommand(t *testing.T) {
	out, err := run(t, "vapid-keys")
	if err != nil {
		t.Fatalf("vapid-keys: %v", err)
	}
	if !strings.Contains(out, "PUSH_VAPID_PUBLIC_KEY=") || !strings.Contains(out, "PUSH_VAPID_PRIVATE_KEY=") {
		t.Errorf("output = %q", out)
	}
}

func TestEnvCommand(t *testing.T) {
	out, err := run(t, "env")
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	for _, name := range []string{"AUTH_JWT_SECRET", "LEDGER_TIME_ZONE", "ARCHIVE_BUCKET"} {
		if !strings.Contains(out, name) {
			t.Errorf("env output missing %s", name)
		}
	}
}

func TestReconcileRequiresConfig(t *testing.T) {
	t.Setenv("TIMEBANK_CONFIG", "/nonexistent/timebank.yaml")
	if _, err := run(t, "reconcile"); err == nil {
		t.Fatal("expected config error")
	}
}

func TestSnapshotWithoutArchive(t *testing.T) {
	t.Setenv("TIMEBANK_CONFIG", "")
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWT_SECRET", "cli-test-secret-cli-test-secret-32")
	t.Setenv("DATABASE_PATH", "cli.db")
	t.Setenv("ARCHIVE_BUCKET", "")

	_, err := run(t, "snapshot")
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("err = %v, want not configured", err)
	}
}
