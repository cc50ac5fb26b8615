package restic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRestic writes an executable shell script standing in for the
// restic binary.
func fakeRestic(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restic")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake restic: %v", err)
	}
	return path
}

func TestArgs_GlobalFlags(t *testing.T) {
	c := NewClient("repo", WithCacheDir("/var/cache/restic"))
	got := strings.Join(c.args("snapshots"), " ")
	want := "--json --quiet --cache-dir /var/cache/restic snapshots"
	if got != want {
		t.Errorf("args = %q, want %q", got, want)
	}

	c = NewClient("repo")
	got = strings.Join(c.args("check", "--read-data"), " ")
	if got != "--json --quiet check --read-data" {
		t.Errorf("args = %q", got)
	}
}

func TestSnapshots_ReturnsRawAndParsed(t *testing.T) {
	bin := fakeRestic(t, `
[ "$RESTIC_REPOSITORY" = "sftp:backup@nas:/srv/restic/www" ] || { echo "bad repo env" >&2; exit 9; }
[ "$RESTIC_PASSWORD_FILE" = "/etc/restic/www.pass" ] || { echo "bad password env" >&2; exit 9; }
echo '[{"id":"aaa","short_id":"aaa1","time":"2026-08-27T01:00:00Z","hostname":"web1","paths":["/data"]},{"id":"bbb","short_id":"bbb1","time":"2026-08-28T01:00:00Z","hostname":"web1","paths":["/data"]}]'
`)
	c := NewClient("sftp:backup@nas:/srv/restic/www",
		WithBinary(bin),
		WithPasswordFile("/etc/restic/www.pass"),
	)

	raw, snaps, err := c.Snapshots(context.Background())
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if NewestID(snaps) != "bbb" {
		t.Errorf("newest ID = %s", NewestID(snaps))
	}
	if !strings.Contains(string(raw), `"id":"aaa"`) {
		t.Errorf("raw output not preserved: %s", raw)
	}
}

func TestRun_NonZeroExitIsCommandError(t *testing.T) {
	bin := fakeRestic(t, `echo "Fatal: wrong password" >&2; exit 3`)
	c := NewClient("repo", WithBinary(bin), WithPassword("secret"))

	_, _, err := c.Snapshots(context.Background())
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.ExitStatus != 3 {
		t.Errorf("exit status = %d, want 3", cmdErr.ExitStatus)
	}
	if !strings.Contains(cmdErr.Output, "wrong password") {
		t.Errorf("captured output = %q", cmdErr.Output)
	}
}

func TestCheck_ClassifiesByMode(t *testing.T) {
	bin := fakeRestic(t, `
for arg in "$@"; do
	[ "$arg" = "--read-data" ] && { echo "Fatal: pack 1234: checksum mismatch" >&2; exit 1; }
done
exit 0
`)
	c := NewClient("repo", WithBinary(bin), WithPassword("secret"))

	if err := c.Check(context.Background(), false); err != nil {
		t.Fatalf("structural check should pass: %v", err)
	}

	err := c.Check(context.Background(), true)
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected *IntegrityError, got %v", err)
	}
	if !integrity.ReadData {
		t.Error("IntegrityError should carry the full-data mode")
	}
	if !strings.Contains(integrity.Detail, "checksum mismatch") {
		t.Errorf("detail = %q", integrity.Detail)
	}
}

func TestDiff_ReturnsSummaryLine(t *testing.T) {
	bin := fakeRestic(t, `
echo '{"message_type":"change","path":"/data/a","modifier":"+"}'
echo '{"message_type":"statistics","added":{"files":1},"removed":{"files":0}}'
`)
	c := NewClient("repo", WithBinary(bin), WithPassword("secret"))

	out, err := c.Diff(context.Background(), "aaa", "bbb")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(string(out), `"message_type":"statistics"`) {
		t.Errorf("expected trailing summary line, got %s", out)
	}
}
