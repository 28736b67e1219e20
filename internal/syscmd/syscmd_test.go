package syscmd

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, name string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Run(name, args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestNames(t *testing.T) {
	want := []string{"cp", "echo", "fail", "init-depfile", "pass", "touch"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRun_Unknown(t *testing.T) {
	code, _, stderr := run(t, "frobnicate")
	if code != ExitUsage {
		t.Errorf("code = %d, want %d", code, ExitUsage)
	}
	if stderr != "error: unknown syscall: frobnicate\n" {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestPassFail(t *testing.T) {
	if code, _, _ := run(t, "pass", "ignored"); code != ExitOK {
		t.Errorf("pass = %d, want 0", code)
	}
	if code, _, _ := run(t, "fail"); code != ExitFailure {
		t.Errorf("fail = %d, want 1", code)
	}
}

func TestEcho(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "\n"},
		{[]string{"hello"}, "hello\n"},
		{[]string{"a", "b c", "d"}, "a b c d\n"},
	}

	for _, tt := range tests {
		code, stdout, _ := run(t, "echo", tt.args...)
		if code != ExitOK || stdout != tt.want {
			t.Errorf("echo %q = %d, %q; want 0, %q", tt.args, code, stdout, tt.want)
		}
	}
}

func TestTouch_CreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing")
	if err := os.WriteFile(existing, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(existing, old, old); err != nil {
		t.Fatal(err)
	}
	created := filepath.Join(dir, "created")

	code, _, stderr := run(t, "touch", existing, created)
	if code != ExitOK {
		t.Fatalf("touch = %d, stderr %q", code, stderr)
	}

	info, err := os.Stat(existing)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().After(old.Add(time.Hour)) {
		t.Errorf("mtime not updated: %v", info.ModTime())
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "keep" {
		t.Errorf("content = %q, want unchanged", data)
	}

	if _, err := os.Stat(created); err != nil {
		t.Errorf("created file missing: %v", err)
	}
}

func TestTouch_ContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "missing", "file")
	good := filepath.Join(dir, "good")

	code, _, stderr := run(t, "touch", bad, good)
	if code != ExitFailure {
		t.Errorf("touch = %d, want 1", code)
	}
	if !strings.HasPrefix(stderr, "touch: ") || !strings.Contains(stderr, bad) {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(good); err != nil {
		t.Errorf("later path not touched: %v", err)
	}
}

func TestInitDepfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.o.d")

	code, _, stderr := run(t, "init-depfile", path)
	if code != ExitOK {
		t.Fatalf("init-depfile = %d, stderr %q", code, stderr)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "out.o") + ":\n"; string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestInitDepfile_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "error: no output file given\n"},
		{"too many", []string{"a.d", "b.d"}, "error: expected exactly 1 argument; got 2\n"},
		{"empty", []string{""}, "error: filepath cannot be empty\n"},
		{"no suffix", []string{"out.o"}, "error: filepath must end with '.d': out.o\n"},
		{"only suffix", []string{".d"}, "error: filepath must end with '.d': .d\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, "init-depfile", tt.args...)
			if code != ExitUsage {
				t.Errorf("code = %d, want %d", code, ExitUsage)
			}
			if stderr != tt.want {
				t.Errorf("stderr = %q, want %q", stderr, tt.want)
			}
		})
	}
}

func TestInitDepfile_WriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "x.d")
	if code, _, _ := run(t, "init-depfile", path); code != ExitFailure {
		t.Errorf("code = %d, want 1", code)
	}
}

func TestCp_FileToFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("much longer old content"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := run(t, "cp", src, dst)
	if code != ExitOK {
		t.Fatalf("cp = %d, stderr %q", code, stderr)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "payload" {
		t.Errorf("dst = %q, want payload", data)
	}
}

func TestCp_IntoDirectory(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	if err := os.Mkdir(out, 0755); err != nil {
		t.Fatal(err)
	}

	var inputs []string
	for _, name := range []string{"a.txt", "b.txt"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, p)
	}
	missing := filepath.Join(dir, "missing.txt")

	args := append(append([]string{}, inputs[0], missing, inputs[1]), out)
	code, _, stderr := run(t, "cp", args...)
	if code != ExitFailure {
		t.Errorf("cp = %d, want 1", code)
	}
	if !strings.Contains(stderr, "missing.txt") {
		t.Errorf("stderr = %q", stderr)
	}

	for _, name := range []string{"a.txt", "b.txt"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Errorf("%s not copied: %v", name, err)
			continue
		}
		if string(data) != name {
			t.Errorf("%s = %q", name, data)
		}
	}
}

func TestCp_Usage(t *testing.T) {
	code, _, stderr := run(t, "cp", "only-one")
	if code != ExitUsage {
		t.Errorf("code = %d, want %d", code, ExitUsage)
	}
	if stderr != "error: usage: cp <inputs[...]> <output[_directory]>\n" {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCp_TargetNotDirectory(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if code, _, _ := run(t, "cp", a, b, filepath.Join(dir, "nodir")); code != ExitFailure {
		t.Errorf("code = %d, want 1", code)
	}
}
