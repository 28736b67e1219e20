package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitEvent(t *testing.T, w *Watcher, want string) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.Path == want {
				return e
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatalf("timeout waiting for event on %s", want)
		}
	}
}

func TestWatcher_WatchTree(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"lib", ".git/objects", "lib/deep"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := New(WithFilter(Filter{Include: []string{"*.lua"}, Ignore: []string{".git"}}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.WatchTree(root); err != nil {
		t.Fatalf("WatchTree() error = %v", err)
	}

	for _, dir := range []string{"", "lib", "lib/deep"} {
		if !w.IsWatching(filepath.Join(root, dir)) {
			t.Errorf("not watching %q", dir)
		}
	}
	if w.IsWatching(filepath.Join(root, ".git")) {
		t.Error("watching ignored .git")
	}
}

func TestWatcher_ReportsMatchingFiles(t *testing.T) {
	root := t.TempDir()

	w, err := New(WithFilter(Filter{Include: []string{"*.lua"}}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.WatchTree(root); err != nil {
		t.Fatalf("WatchTree() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(root, "build.lua")
	if err := os.WriteFile(script, []byte("-- x"), 0644); err != nil {
		t.Fatal(err)
	}

	e := waitEvent(t, w, script)
	if !e.Op.Has(OpCreate) && !e.Op.Has(OpWrite) {
		t.Errorf("op = %v, want CREATE or WRITE", e.Op)
	}
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()

	w, err := New(WithFilter(Filter{Include: []string{"*.lua"}}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.WatchTree(root); err != nil {
		t.Fatalf("WatchTree() error = %v", err)
	}

	sub := filepath.Join(root, "newdir")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !w.IsWatching(sub) {
		if time.Now().After(deadline) {
			t.Fatal("new directory was not watched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	script := filepath.Join(sub, "mod.lua")
	if err := os.WriteFile(script, []byte("return {}"), 0644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w, script)
}

func TestWatcher_Errors(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := w.WatchTree(filepath.Join(t.TempDir(), "missing")); err != ErrPathNotExist {
		t.Errorf("WatchTree(missing) error = %v, want ErrPathNotExist", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.WatchTree(t.TempDir()); err != ErrWatcherClosed {
		t.Errorf("WatchTree after Close error = %v, want ErrWatcherClosed", err)
	}
}
