package env

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPrepend(t *testing.T) {
	tests := []struct {
		cur, value, sep, want string
	}{
		{"", "-I/a", " ", "-I/a"},
		{"-I/b", "-I/a", " ", "-I/a -I/b"},
		{"/b", "/a", ":", "/a:/b"},
	}
	for _, tt := range tests {
		if got := Prepend(tt.cur, tt.value, tt.sep); got != tt.want {
			t.Errorf("Prepend(%q, %q, %q) = %q, want %q", tt.cur, tt.value, tt.sep, got, tt.want)
		}
	}
}

func TestOverlayApply(t *testing.T) {
	base := []string{"HOME=/root", "LDFLAGS=-L/usr/local/lib"}
	o := Overlay{}.
		With("LDFLAGS", "-L/dest/lib", " ").
		With("PKG_CONFIG_PATH", "/dest/lib/pkgconfig", ":").
		With("PKG_CONFIG_PATH", "/more/pkgconfig", ":")

	got := o.Apply(base)

	if v, _ := Lookup(got, "LDFLAGS"); v != "-L/dest/lib -L/usr/local/lib" {
		t.Errorf("LDFLAGS = %q", v)
	}
	if v, _ := Lookup(got, "PKG_CONFIG_PATH"); v != "/more/pkgconfig:/dest/lib/pkgconfig" {
		t.Errorf("PKG_CONFIG_PATH = %q", v)
	}
	if v, _ := Lookup(got, "HOME"); v != "/root" {
		t.Errorf("HOME = %q", v)
	}
	if base[1] != "LDFLAGS=-L/usr/local/lib" {
		t.Errorf("Apply modified base: %v", base)
	}
}

func TestOverlayWithDoesNotShare(t *testing.T) {
	o := Overlay{}.With("A", "1", " ")
	a := o.With("B", "2", " ")
	b := o.With("C", "3", " ")
	if _, ok := Lookup(a.Apply(nil), "C"); ok {
		t.Error("overlays derived from the same value share state")
	}
	if _, ok := Lookup(o.Apply(nil), "B"); ok {
		t.Error("With modified its receiver")
	}
	if v, _ := Lookup(b.Apply(nil), "A"); v != "1" {
		t.Errorf("A = %q in a derived overlay", v)
	}
}

func TestProcessEnvironmentUntouched(t *testing.T) {
	t.Setenv("CPPFLAGS", "-I/system")
	o := ForPrefix("/dest", Options{GOOS: "linux"})
	got := o.Apply(os.Environ())
	if v, _ := Lookup(got, "CPPFLAGS"); v != "-I"+filepath.Join("/dest", "include")+" -I/system" {
		t.Errorf("CPPFLAGS = %q", v)
	}
	if v := os.Getenv("CPPFLAGS"); v != "-I/system" {
		t.Errorf("process CPPFLAGS changed to %q", v)
	}
}

func TestForPrefix(t *testing.T) {
	prefix := filepath.Join("/", "opt", "dest")
	got := ForPrefix(prefix, Options{GOOS: "linux", ArchFlags: "-arch arm64"}).Apply(nil)

	want := map[string]string{
		"CPPFLAGS":        "-I" + filepath.Join(prefix, "include"),
		"LDFLAGS":         "-L" + filepath.Join(prefix, "lib"),
		"PKG_CONFIG_PATH": filepath.Join(prefix, "lib", "pkgconfig"),
	}
	for k, v := range want {
		if g, _ := Lookup(got, k); g != v {
			t.Errorf("%s = %q, want %q", k, g, v)
		}
	}
	if _, ok := Lookup(got, "CFLAGS"); ok {
		t.Error("arch flags applied on linux")
	}
}

func TestForPrefixDarwinArchFlags(t *testing.T) {
	target := ForPrefix("/dest", Options{GOOS: "darwin", ArchFlags: "-arch arm64"}).Apply(nil)
	for _, k := range []string{"CFLAGS", "CXXFLAGS"} {
		if v, _ := Lookup(target, k); v != "-arch arm64" {
			t.Errorf("%s = %q", k, v)
		}
	}
	if v, _ := Lookup(target, "LDFLAGS"); v != "-arch arm64 -L"+filepath.Join("/dest", "lib") {
		t.Errorf("LDFLAGS = %q", v)
	}

	builder := ForPrefix("/dest.builder", Options{GOOS: "darwin", ForBuilder: true, ArchFlags: "-arch arm64"}).Apply(nil)
	if _, ok := Lookup(builder, "CFLAGS"); ok {
		t.Error("arch flags applied to builder prefix")
	}
}

func TestMangle(t *testing.T) {
	tests := []struct {
		goos, in, want string
	}{
		{"windows", `C:\Users\ci\dest`, "/c/Users/ci/dest"},
		{"windows", `D:/a/b`, "/d/a/b"},
		{"windows", `relative\dir`, "relative/dir"},
		{"linux", `/opt/dest`, "/opt/dest"},
		{"darwin", `C:\odd`, `C:\odd`},
	}
	for _, tt := range tests {
		if got := Mangle(tt.goos, tt.in); got != tt.want {
			t.Errorf("Mangle(%q, %q) = %q, want %q", tt.goos, tt.in, got, tt.want)
		}
	}
}

func TestWithToolPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("list separator differs")
	}
	got := Overlay{}.WithToolPath("/dest.builder/bin").Apply([]string{"PATH=/usr/bin"})
	if v, _ := Lookup(got, "PATH"); v != "/dest.builder/bin:/usr/bin" {
		t.Errorf("PATH = %q", v)
	}
}
