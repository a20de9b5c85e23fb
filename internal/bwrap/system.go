package bwrap

import (
	"os"
	"path/filepath"
)

// SystemBase exposes the base system directories read-only. On merged-/usr
// hosts /bin, /lib, /lib64 and /sbin are symlinks into /usr and are recreated
// as symlinks instead of binds.
func (b *Builder) SystemBase() {
	_ = b.ROBind("/usr")
	for _, dir := range []string{"/bin", "/lib", "/lib64", "/sbin"} {
		info, err := os.Lstat(dir)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			b.AddSymlink("usr"+dir, dir)
		} else if info.IsDir() {
			_ = b.ROBind(dir)
		}
	}
}

// SystemDNS exposes the host's resolver configuration.
func (b *Builder) SystemDNS() {
	files := []string{
		"/etc/resolv.conf",
		"/etc/hosts",
		"/etc/nsswitch.conf",
		"/etc/host.conf",
		"/etc/gai.conf",
	}
	for _, f := range files {
		if isFile(f) {
			_ = b.ROBind(f)
		}
	}
}

// SystemSSL exposes CA certificate stores.
func (b *Builder) SystemSSL() {
	paths := []string{
		"/etc/ssl",
		"/etc/ca-certificates",
		"/etc/pki",
		"/etc/ca-certificates.conf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = b.ROBind(p)
		}
	}
}

// SystemUsers exposes passwd, group and timezone data.
func (b *Builder) SystemUsers() {
	for _, f := range []string{"/etc/passwd", "/etc/group", "/etc/localtime"} {
		if isFile(f) {
			_ = b.ROBind(f)
		}
	}
}

// BindPathDirs exposes every existing directory on $PATH read-only so the
// host toolchain stays runnable inside the sandbox.
func (b *Builder) BindPathDirs() {
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		if isDir(dir) {
			_ = b.ROBind(dir)
		}
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
