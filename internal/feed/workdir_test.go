package feed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func cwd(t *testing.T) string {
	t.Helper()
	d, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestInDir_RestoresOnSuccessAndError(t *testing.T) {
	start := cwd(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "feed.tsv"), []byte("A\tf1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := InDir(dir, func() error {
		if _, err := os.Stat("feed.tsv"); err != nil {
			t.Errorf("relative path should resolve inside dir: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InDir: %v", err)
	}
	if got := cwd(t); got != start {
		t.Errorf("cwd = %s after success, want %s", got, start)
	}

	boom := errors.New("boom")
	if err := InDir(dir, func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("InDir error = %v, want boom", err)
	}
	if got := cwd(t); got != start {
		t.Errorf("cwd = %s after error, want %s", got, start)
	}
}

func TestInDir_RestoresOnPanic(t *testing.T) {
	start := cwd(t)
	dir := t.TempDir()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = InDir(dir, func() error { panic("boom") })
	}()

	if got := cwd(t); got != start {
		t.Errorf("cwd = %s after panic, want %s", got, start)
	}
}

func TestInDir_EmptyDirIsNoop(t *testing.T) {
	start := cwd(t)
	called := false
	if err := InDir("", func() error {
		called = true
		if got := cwd(t); got != start {
			t.Errorf("cwd changed to %s", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("fn not called")
	}
}

func TestEnterDir_Missing(t *testing.T) {
	start := cwd(t)
	if _, err := EnterDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("EnterDir of missing dir should fail")
	}
	if got := cwd(t); got != start {
		t.Errorf("cwd = %s, want %s", got, start)
	}
}

func TestWorkDir_LeaveTwice(t *testing.T) {
	start := cwd(t)
	wd, err := EnterDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := wd.Leave(); err != nil {
		t.Fatal(err)
	}
	if err := wd.Leave(); err != nil {
		t.Errorf("second Leave: %v", err)
	}
	if got := cwd(t); got != start {
		t.Errorf("cwd = %s, want %s", got, start)
	}
}
