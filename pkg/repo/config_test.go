package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/mdv/pkg/object"
)

func TestConfigRemoteRoundTrip(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SetRemote("origin", "/srv/mdv/alice/repo"); err != nil {
		t.Fatalf("SetRemote: %v", err)
	}

	url, err := r.RemoteURL("origin")
	if err != nil {
		t.Fatalf("RemoteURL: %v", err)
	}
	if url != "/srv/mdv/alice/repo" {
		t.Fatalf("remote URL = %q, want %q", url, "/srv/mdv/alice/repo")
	}
	if _, err := r.RemoteURL("upstream"); err == nil {
		t.Fatal("RemoteURL(upstream) succeeded for an unconfigured remote")
	}
}

func TestReadConfigMissingReturnsEmptyConfig(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg == nil {
		t.Fatalf("config is nil")
	}
	if len(cfg.Remotes) != 0 {
		t.Fatalf("expected no remotes, got %d", len(cfg.Remotes))
	}
}

func TestConfig_IsTOML(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetUserName("alice"); err != nil {
		t.Fatalf("SetUserName: %v", err)
	}
	if err := r.SetRemote("origin", "/tmp/origin"); err != nil {
		t.Fatalf("SetRemote: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.MdvDir, "config.toml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	for _, want := range []string{"[user]", `name = "alice"`, "[remotes]", `origin = "/tmp/origin"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("config.toml missing %q:\n%s", want, data)
		}
	}
}

func TestReadConfig_HandWritten(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	raw := "[user]\nname = \"bob\"\n\n[remotes]\nbackup = \"/mnt/backup\"\n"
	if err := os.WriteFile(filepath.Join(r.MdvDir, "config.toml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := r.DefaultAuthor(); got != "bob" {
		t.Fatalf("DefaultAuthor = %q, want bob", got)
	}
	if url, err := r.RemoteURL("backup"); err != nil || url != "/mnt/backup" {
		t.Fatalf("RemoteURL(backup) = %q, %v", url, err)
	}

	if err := os.WriteFile(filepath.Join(r.MdvDir, "config.toml"), []byte("[user\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadConfig(); err == nil {
		t.Fatal("ReadConfig accepted malformed TOML")
	}
}

func TestDefaultAuthor_FallsBackToEnvironment(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("USER", "carol")
	if got := r.DefaultAuthor(); got != "carol" {
		t.Fatalf("DefaultAuthor = %q, want carol", got)
	}
	t.Setenv("USER", "")
	if got := r.DefaultAuthor(); got != "unknown" {
		t.Fatalf("DefaultAuthor = %q, want unknown", got)
	}
}

func TestListRefs(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.UpdateRef("refs/heads/main", object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRef("refs/heads/topic/x", object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")); err != nil {
		t.Fatal(err)
	}
	// A stale lock from an interrupted update is not a ref.
	if err := os.WriteFile(filepath.Join(r.MdvDir, "refs", "heads", "main.lock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	heads, err := r.ListRefs("heads")
	if err != nil {
		t.Fatal(err)
	}
	if len(heads) != 2 {
		t.Fatalf("heads = %v, want 2 entries", heads)
	}
	if _, ok := heads["heads/topic/x"]; !ok {
		t.Fatalf("expected heads/topic/x in prefix listing")
	}
}

func TestSetUserName_RejectsLineBreaks(t *testing.T) {
	r := newTestRepo(t)
	for _, name := range []string{"a\nb", "a\rb", "a\x00b"} {
		if err := r.SetUserName(name); !errors.Is(err, ErrInvalidAuthor) {
			t.Fatalf("SetUserName(%q) err = %v, want ErrInvalidAuthor", name, err)
		}
	}
	if err := r.SetUserName("Ada Lovelace"); err != nil {
		t.Fatalf("SetUserName: %v", err)
	}
}
