// Package fsops builds pool work functions for blocking filesystem
// operations, so callers can run them off the controlling goroutine
// without writing closures by hand. The pool treats them as opaque
// work; failures pass through unchanged as result errors.
package fsops

import (
	"context"
	"os"

	"github.com/offloadio/offload/pkg/pool"
)

// Stat returns a work function resolving to an os.FileInfo.
func Stat(path string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return os.Stat(path) }
}

// Lstat is Stat without following symlinks.
func Lstat(path string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return os.Lstat(path) }
}

// Open returns a work function resolving to an *os.File. The file is
// owned by the done callback.
func Open(path string, flag int, perm os.FileMode) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return os.OpenFile(path, flag, perm) }
}

// ReadFile returns a work function resolving to the file contents.
func ReadFile(path string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return os.ReadFile(path) }
}

// WriteFile returns a work function with a nil value result.
func WriteFile(path string, data []byte, perm os.FileMode) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.WriteFile(path, data, perm) }
}

func Chmod(path string, mode os.FileMode) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.Chmod(path, mode) }
}

func Chown(path string, uid, gid int) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.Chown(path, uid, gid) }
}

func Rename(oldpath, newpath string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.Rename(oldpath, newpath) }
}

func Remove(path string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.Remove(path) }
}

func Mkdir(path string, perm os.FileMode) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.Mkdir(path, perm) }
}

// ReadDir returns a work function resolving to []os.DirEntry.
func ReadDir(path string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return os.ReadDir(path) }
}

func Symlink(oldname, newname string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return nil, os.Symlink(oldname, newname) }
}

// Readlink returns a work function resolving to the link target.
func Readlink(path string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return os.Readlink(path) }
}
