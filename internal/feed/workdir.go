package feed

import (
	"fmt"
	"os"
)

// WorkDir is an entered working directory that remembers where it came from.
type WorkDir struct {
	saved string
	left  bool
}

// EnterDir changes the working directory to dir and returns a handle whose
// Leave restores the previous one. An empty dir leaves the working directory
// untouched.
func EnterDir(dir string) (*WorkDir, error) {
	saved, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return nil, fmt.Errorf("enter %s: %w", dir, err)
		}
	}
	return &WorkDir{saved: saved}, nil
}

// Leave restores the directory that was current before EnterDir.
// Calling Leave more than once is a no-op.
func (w *WorkDir) Leave() error {
	if w.left {
		return nil
	}
	w.left = true
	if err := os.Chdir(w.saved); err != nil {
		return fmt.Errorf("restore %s: %w", w.saved, err)
	}
	return nil
}

// InDir runs fn with dir as the working directory and restores the previous
// directory on every exit path, including a panic in fn. An error from fn
// takes precedence over a failure to restore.
func InDir(dir string, fn func() error) (err error) {
	wd, err := EnterDir(dir)
	if err != nil {
		return err
	}
	defer func() {
		if lerr := wd.Leave(); lerr != nil && err == nil {
			err = lerr
		}
	}()
	return fn()
}
