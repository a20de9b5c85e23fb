package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// isolate points every discovery location at empty temp directories and
// clears any CLAUDE_JAIL_* variables leaking in from the host.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLAUDE_JAIL_CONFIG_HOME", t.TempDir())
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "CLAUDE_JAIL_") && name != "CLAUDE_JAIL_CONFIG_HOME" {
			value := os.Getenv(name)
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, value) })
		}
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	isolate(t)
	project := t.TempDir()

	r, err := Resolve(project, Overrides{})
	if err != nil {
		t.Fatal(err)
	}

	if r.Profile != "dev" {
		t.Errorf("profile = %q, want dev", r.Profile)
	}
	if !r.Network {
		t.Error("network should default to true")
	}
	if r.SandboxName != ".claude-sandbox" {
		t.Errorf("sandbox_name = %q", r.SandboxName)
	}
	if r.File != "" {
		t.Errorf("no config file should be loaded, got %q", r.File)
	}
	for _, key := range Keys {
		if r.Sources[key] != SourceDefault {
			t.Errorf("source of %s = %s, want default", key, r.Sources[key])
		}
	}
}

func TestEnvBeatsFile(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ".claude-jail.yaml"), "profile: minimal\n")
	t.Setenv("CLAUDE_JAIL_PROFILE", "paranoid")

	r, err := Resolve(project, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Profile != "paranoid" {
		t.Errorf("profile = %q, want paranoid (env over file)", r.Profile)
	}
	if r.Sources["profile"] != SourceEnv {
		t.Errorf("source = %s, want env", r.Sources["profile"])
	}
}

func TestFlagBeatsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CLAUDE_JAIL_PROFILE", "paranoid")

	profile := "minimal"
	r, err := Resolve(t.TempDir(), Overrides{Profile: &profile})
	if err != nil {
		t.Fatal(err)
	}
	if r.Profile != "minimal" {
		t.Errorf("profile = %q, want minimal (flag over env)", r.Profile)
	}
	if r.Sources["profile"] != SourceFlag {
		t.Errorf("source = %s, want flag", r.Sources["profile"])
	}
}

func TestFirstExistingFileWins(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ".claude-jail.yaml"), "profile: minimal\n")
	writeConfig(t, filepath.Join(ConfigHome(), "config.yaml"), "profile: paranoid\n")

	r, err := Resolve(project, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Profile != "minimal" {
		t.Errorf("profile = %q, want minimal from project file", r.Profile)
	}
	if r.FileScope != ScopeProject {
		t.Errorf("file scope = %v, want project", r.FileScope)
	}
}

func TestUserGlobalFileWhenNoProjectFile(t *testing.T) {
	isolate(t)
	writeConfig(t, filepath.Join(ConfigHome(), "config.yaml"), "sandbox_name: .jail\n")

	r, err := Resolve(t.TempDir(), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if r.SandboxName != ".jail" {
		t.Errorf("sandbox_name = %q, want .jail", r.SandboxName)
	}
	if r.FileScope != ScopeUser {
		t.Errorf("file scope = %v, want user", r.FileScope)
	}
}

func TestParseFailureFallsThroughToDefaults(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ".claude-jail.yaml"), "profile: [unclosed\n")
	// A later candidate exists, but discovery stopped at the first existing
	// file: its parse failure must not fall through to this one.
	writeConfig(t, filepath.Join(ConfigHome(), "config.yaml"), "profile: paranoid\n")

	r, err := Resolve(project, Overrides{})
	if err != nil {
		t.Fatalf("parse failure should not be fatal: %v", err)
	}
	if r.Profile != "dev" {
		t.Errorf("profile = %q, want default dev", r.Profile)
	}
	if r.File != "" {
		t.Errorf("no file should be recorded as loaded, got %q", r.File)
	}
}

func TestExplicitConfigMissingIsFatal(t *testing.T) {
	isolate(t)
	_, err := Resolve(t.TempDir(), Overrides{ConfigFile: "/nonexistent/claude-jail.yaml"})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestExplicitConfigSkipsDiscovery(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ".claude-jail.yaml"), "profile: minimal\n")
	explicit := filepath.Join(t.TempDir(), "mine.yaml")
	writeConfig(t, explicit, "profile: paranoid\n")

	r, err := Resolve(project, Overrides{ConfigFile: explicit})
	if err != nil {
		t.Fatal(err)
	}
	if r.Profile != "paranoid" {
		t.Errorf("profile = %q, want paranoid from explicit file", r.Profile)
	}
	if r.File != explicit {
		t.Errorf("file = %q, want %q", r.File, explicit)
	}
}

func TestEnvListsAreColonSeparated(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ".claude-jail.yaml"), "ro_paths: [/from/file]\n")
	t.Setenv("CLAUDE_JAIL_RO_PATHS", "/srv/data:/opt/cache")

	r, err := Resolve(project, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/srv/data", "/opt/cache"}
	if !reflect.DeepEqual(r.ROPaths, want) {
		t.Errorf("ro_paths = %v, want %v (env replaces file wholesale)", r.ROPaths, want)
	}
}

func TestFileLists(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ".claude-jail.yaml"),
		"blocked_paths:\n  - /home/user/.ssh\n  - /home/user/.gnupg\n")

	r, err := Resolve(project, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/home/user/.ssh", "/home/user/.gnupg"}
	if !reflect.DeepEqual(r.BlockedPaths, want) {
		t.Errorf("blocked_paths = %v, want %v", r.BlockedPaths, want)
	}
}

func TestMalformedBoolEnvIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("CLAUDE_JAIL_NETWORK", "sometimes")

	r, err := Resolve(t.TempDir(), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Network {
		t.Error("malformed boolean should leave the default in place")
	}
	if r.Sources["network"] != SourceDefault {
		t.Errorf("source = %s, want default", r.Sources["network"])
	}
}

func TestBoolEnvForms(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"false", false},
		{"0", false},
		{"true", true},
		{"1", true},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			isolate(t)
			t.Setenv("CLAUDE_JAIL_NETWORK", tc.value)
			r, err := Resolve(t.TempDir(), Overrides{})
			if err != nil {
				t.Fatal(err)
			}
			if r.Network != tc.want {
				t.Errorf("network = %v for %q, want %v", r.Network, tc.value, tc.want)
			}
		})
	}
}
