package bwrap

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func countBinds(b *Builder) int {
	n := 0
	for _, d := range b.Directives() {
		if _, ok := d.(Bind); ok {
			n++
		}
	}
	return n
}

func dirPaths(b *Builder) []string {
	var out []string
	for _, d := range b.Directives() {
		if dir, ok := d.(Dir); ok {
			out = append(out, dir.Path)
		}
	}
	return out
}

func TestBindIdempotent(t *testing.T) {
	dir := t.TempDir()
	b := New()

	if err := b.ROBind(dir); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := b.ROBind(dir); err != nil {
		t.Fatalf("second bind should be a no-op, got: %v", err)
	}
	if got := countBinds(b); got != 1 {
		t.Errorf("expected 1 bind directive, got %d", got)
	}
}

func TestBindMissingSource(t *testing.T) {
	b := New()
	err := b.ROBind(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if len(b.Directives()) != 0 {
		t.Errorf("failed bind should add nothing, got %d directives", len(b.Directives()))
	}
}

func TestAncestorDirsQueuedOnce(t *testing.T) {
	src := t.TempDir()
	b := New()

	if err := b.ROBindTo(src, "/opt/tools/go"); err != nil {
		t.Fatal(err)
	}
	if err := b.ROBindTo(src, "/opt/tools/rust"); err != nil {
		t.Fatal(err)
	}

	want := []string{"/opt", "/opt/tools"}
	if got := dirPaths(b); !reflect.DeepEqual(got, want) {
		t.Errorf("dir directives = %v, want %v", got, want)
	}
}

func TestBucketOrdering(t *testing.T) {
	src := t.TempDir()
	b := New()

	// Insert in the reverse of emission order.
	b.Setenv("HOME", "/sandbox")
	if err := b.ROBindTo(src, "/srv/project"); err != nil {
		t.Fatal(err)
	}
	b.Unshare("pid")

	ds := b.Directives()
	kinds := make([]string, len(ds))
	for i, d := range ds {
		kinds[i] = reflect.TypeOf(d).Name()
	}
	want := []string{"Namespace", "Dir", "Bind", "Env"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("emission order = %v, want %v", kinds, want)
	}
}

func TestResetClearsDedupState(t *testing.T) {
	dir := t.TempDir()
	b := New()

	if err := b.ROBind(dir); err != nil {
		t.Fatal(err)
	}
	first := b.Args()

	b.Reset()
	if len(b.Directives()) != 0 {
		t.Fatal("reset builder should be empty")
	}

	if err := b.ROBind(dir); err != nil {
		t.Fatal(err)
	}
	if got := b.Args(); !reflect.DeepEqual(got, first) {
		t.Errorf("second pass after reset = %v, want %v", got, first)
	}
}

func TestUnshareUnknownIgnored(t *testing.T) {
	b := New()
	b.Unshare("user", "timens", "pid")
	b.Share("net", "pid")

	var names []string
	for _, d := range b.Directives() {
		ns := d.(Namespace)
		names = append(names, ns.Name)
	}
	want := []string{"user", "pid", "net"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("namespaces = %v, want %v", names, want)
	}
}

func TestSetenvNeverDedups(t *testing.T) {
	b := New()
	b.Setenv("PATH", "/usr/bin")
	b.Setenv("PATH", "/usr/local/bin")

	want := []string{"--setenv", "PATH", "/usr/bin", "--setenv", "PATH", "/usr/local/bin"}
	if got := b.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestSymlinkIdempotent(t *testing.T) {
	b := New()
	b.AddSymlink("usr/bin", "/bin")
	b.AddSymlink("usr/bin", "/bin")

	n := 0
	for _, d := range b.Directives() {
		if _, ok := d.(Symlink); ok {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected 1 symlink directive, got %d", n)
	}
}

func TestBindResolvesSourceSymlinks(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	b := New()
	if err := b.ROBind(link); err != nil {
		t.Fatal(err)
	}

	wantSrc, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range b.Directives() {
		if bind, ok := d.(Bind); ok {
			if bind.Src != wantSrc {
				t.Errorf("bind src = %q, want resolved %q", bind.Src, wantSrc)
			}
			if bind.Dst != link {
				t.Errorf("bind dst = %q, want original %q", bind.Dst, link)
			}
		}
	}
}

func TestCommandShape(t *testing.T) {
	b := New()
	b.Unshare("pid")
	b.Setenv("TERM", "xterm")

	got := b.Command("claude", "--help")
	want := []string{
		"bwrap", "--die-with-parent", "--new-session",
		"--unshare-pid",
		"--setenv", "TERM", "xterm",
		"--", "claude", "--help",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("command = %v, want %v", got, want)
	}
}

func TestTmpfsCreatesAncestors(t *testing.T) {
	b := New()
	b.AddTmpfs("/var/cache/build")

	want := []string{"/var", "/var/cache"}
	if got := dirPaths(b); !reflect.DeepEqual(got, want) {
		t.Errorf("dir directives = %v, want %v", got, want)
	}
}

func TestBindPathDirs(t *testing.T) {
	a := t.TempDir()
	c := t.TempDir()
	t.Setenv("PATH", a+string(filepath.ListSeparator)+"/nonexistent-path-entry"+string(filepath.ListSeparator)+c)

	b := New()
	b.BindPathDirs()

	if got := countBinds(b); got != 2 {
		t.Errorf("expected 2 binds for existing PATH dirs, got %d", got)
	}
}
