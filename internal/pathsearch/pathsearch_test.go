package pathsearch

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("relies on POSIX execute permissions")
	}
}

func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_SkipsMissingCandidate(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	without := filepath.Join(root, "dir", "without", "tool")
	with := filepath.Join(root, "dir", "with", "tool")
	if err := os.MkdirAll(without, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(with, "toolname"), 0755)

	got, found, err := Resolve("toolname", without+":"+with, ":")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !found {
		t.Fatal("Resolve() found = false, want true")
	}
	if want := filepath.Join(with, "toolname"); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	writeFile(t, filepath.Join(a, "tool"), 0755)
	writeFile(t, filepath.Join(b, "tool"), 0755)

	got, _, err := Resolve("tool", a+":"+b, ":")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(a, "tool"); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolve_ExplicitPath(t *testing.T) {
	tests := []string{
		"./explicit/path",
		"/usr/bin/env",
		"relative/tool",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			got, found, err := Resolve(name, "/nowhere:/else", ":")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !found || got != name {
				t.Errorf("Resolve(%q) = %q, %v; want unchanged", name, got, found)
			}
		})
	}
}

func TestResolve_SkipsUnsuitable(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	notExec := filepath.Join(root, "notexec")
	dirNamed := filepath.Join(root, "dirnamed")
	fileAsDir := filepath.Join(root, "file")
	good := filepath.Join(root, "good")

	writeFile(t, filepath.Join(notExec, "tool"), 0644)
	if err := os.MkdirAll(filepath.Join(dirNamed, "tool"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, fileAsDir, 0644) // ENOTDIR when used as a directory
	writeFile(t, filepath.Join(good, "tool"), 0755)

	search := strings.Join([]string{notExec, dirNamed, fileAsDir, good}, ":")
	got, found, err := Resolve("tool", search, ":")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !found {
		t.Fatal("Resolve() found = false, want true")
	}
	if want := filepath.Join(good, "tool"); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolve_SymlinkLoopSkipped(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	loop := filepath.Join(root, "loop")
	if err := os.MkdirAll(loop, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(loop, "tool")
	if err := os.Symlink(link, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	_, found, err := Resolve("tool", loop, ":")
	if err != nil {
		t.Fatalf("Resolve() error = %v, want skip", err)
	}
	if found {
		t.Error("Resolve() found = true, want false")
	}
}

func TestResolve_EmptyDelimiterIsOneEntry(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	// A directory whose name contains the list separator.
	odd := filepath.Join(root, "a:b")
	writeFile(t, filepath.Join(odd, "tool"), 0755)

	got, found, err := Resolve("tool", odd, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !found || got != filepath.Join(odd, "tool") {
		t.Errorf("Resolve() = %q, %v; want %q", got, found, filepath.Join(odd, "tool"))
	}

	if _, found, _ := Resolve("tool", odd, ":"); found {
		t.Error("Resolve() with ':' found tool inside a split entry")
	}
}

func TestResolve_NotFound(t *testing.T) {
	got, found, err := Resolve("definitely-not-a-tool", t.TempDir(), "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if found || got != "" {
		t.Errorf("Resolve() = %q, %v; want not found", got, found)
	}
}

func TestResolve_EmptyEntryIsCurrentDir(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tool"), 0755)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, found, err := Resolve("tool", "/nonexistent::", ":")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !found {
		t.Fatal("Resolve() found = false, want true")
	}
	if got != "./tool" {
		t.Errorf("Resolve() = %q, want ./tool", got)
	}
}

func TestResolve_FatalError(t *testing.T) {
	skipOnWindows(t)

	// A component longer than NAME_MAX fails with ENAMETOOLONG, which is not
	// one of the skipped error classes.
	name := strings.Repeat("x", 300)
	dir := t.TempDir()

	_, found, err := Resolve(name, dir, ":")
	if err == nil {
		t.Fatal("Resolve() error = nil, want fatal error")
	}
	if found {
		t.Error("Resolve() found = true on error")
	}

	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("error type = %T, want *ResolveError", err)
	}
	if re.Dir != dir {
		t.Errorf("ResolveError.Dir = %q, want %q", re.Dir, dir)
	}
	if !strings.Contains(err.Error(), "fatal error attempting to resolve path") {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		s      string
		delims string
		want   []string
	}{
		{"a:b:c", ":", []string{"a", "b", "c"}},
		{"a::b", ":", []string{"a", "", "b"}},
		{"", ":", []string{""}},
		{":", ":", []string{"", ""}},
		{"a;b:c", ":;", []string{"a", "b", "c"}},
		{"no-delims", "", []string{"no-delims"}},
		{"a b\tc", " \t", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		got := Split(tt.s, tt.delims)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q, %q) = %q, want %q", tt.s, tt.delims, got, tt.want)
		}
	}
}

func TestHasSeparator(t *testing.T) {
	if HasSeparator("tool") {
		t.Error("HasSeparator(tool) = true")
	}
	if !HasSeparator("bin/tool") {
		t.Error("HasSeparator(bin/tool) = false")
	}
}
