package owners

import (
	"io"
	"io/fs"
	"os"
	"path"
)

// RepoFS is the file access boundary of the ownership database. Names are
// slash-separated paths relative to the repository root.
type RepoFS interface {
	Open(name string) (io.ReadCloser, error)
	Exists(name string) bool
}

// FS adapts an fs.FS (os.DirFS, fstest.MapFS, ...) to RepoFS.
func FS(fsys fs.FS) RepoFS {
	return fsAdapter{fsys}
}

// DirFS returns a RepoFS backed by the directory tree rooted at root.
func DirFS(root string) RepoFS {
	return FS(os.DirFS(root))
}

type fsAdapter struct {
	fsys fs.FS
}

func (a fsAdapter) Open(name string) (io.ReadCloser, error) {
	return a.fsys.Open(name)
}

func (a fsAdapter) Exists(name string) bool {
	_, err := fs.Stat(a.fsys, name)
	return err == nil
}

// parentDir strips the last path segment; the parent of a top-level name is ""
// so the repository root is addressable as the empty path.
func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
