// Package report lists the packages of a run with the versions derived
// from their archive URLs.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/goplus/cibuildpkg/pkgs/gnu"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

// Version guesses the version of a source archive from its URL, e.g.
// "https://ffmpeg.org/releases/ffmpeg-7.1.1.tar.xz" gives "7.1.1" and
// ".../lame_3.100.orig.tar.gz" gives "3.100".
func Version(url string) string {
	v := url
	if strings.HasPrefix(url, "https://github.com") {
		v = url[strings.LastIndex(url, "/")+1:]
	} else if i := strings.LastIndex(url, "-"); i >= 0 {
		v = url[i+1:]
	} else if i := strings.LastIndex(url, "_"); i >= 0 {
		v = url[i+1:]
	}

	v = strings.TrimPrefix(v, "v")
	if _, after, ok := strings.Cut(v, "-"); ok {
		v = after
	}
	if _, after, ok := strings.Cut(v, "_"); ok {
		v = after
	}
	if i := strings.LastIndex(v, ".orig"); i >= 0 {
		return v[:i]
	}
	if i := strings.LastIndex(v, ".tar"); i >= 0 {
		return v[:i]
	}
	return v
}

// Entry is one line of a report.
type Entry struct {
	Name    string
	Version string
	// Commit is set when the version is a source revision rather than a
	// release number.
	Commit bool
}

func (e Entry) String() string {
	if e.Commit {
		v := e.Version
		if len(v) > 12 {
			v = v[:12]
		}
		return fmt.Sprintf("%s %s (commit)", e.Name, v)
	}
	return e.Name + " " + e.Version
}

// Entries returns the report entries of specs sorted by name.
func Entries(specs []spec.Spec) []Entry {
	entries := make([]Entry, len(specs))
	for i, s := range specs {
		v := Version(s.SourceURL)
		entries[i] = Entry{Name: s.Name, Version: v, Commit: !isRelease(v)}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return entries
}

// Downgrade is a package whose release version went down.
type Downgrade struct {
	Name     string
	From, To string
}

func (d Downgrade) String() string {
	return fmt.Sprintf("%s %s -> %s", d.Name, d.From, d.To)
}

// Downgrades compares next against base by package name and returns the
// packages whose release version in next sorts before the one in base.
// Packages only in one list and commit versions are not compared.
func Downgrades(base, next []spec.Spec) []Downgrade {
	from := make(map[string]string, len(base))
	for _, s := range base {
		from[s.Name] = Version(s.SourceURL)
	}
	var out []Downgrade
	for _, s := range next {
		old, ok := from[s.Name]
		v := Version(s.SourceURL)
		if !ok || !isRelease(old) || !isRelease(v) {
			continue
		}
		if gnu.Compare(v, old) < 0 {
			out = append(out, Downgrade{Name: s.Name, From: old, To: v})
		}
	}
	return out
}

// isRelease reports whether v starts with a dotted release number. One
// leading tag letter is allowed and only the first three components are
// checked, so "n13.0.19.0" qualifies.
func isRelease(v string) bool {
	if len(v) > 1 && isLetter(v[0]) && !isLetter(v[1]) {
		v = v[1:]
	}
	parts := strings.SplitN(v, ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.IsValid("v" + strings.Join(parts, "."))
}

// Write prints title followed by one "- name version" line per spec.
func Write(w io.Writer, title string, specs []spec.Spec) error {
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	for _, e := range Entries(specs) {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func isLetter(c byte) bool { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }
