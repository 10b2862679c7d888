package git

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// RefFS reads files from a specific git ref instead of the working tree,
// so OWNERS lookups see the snapshot under review.
type RefFS struct {
	ref      string
	dir      string
	executor gitCommandExecutor
}

// NewRefFS creates a RefFS reading from ref in the repository at dir. The ref
// is verified up front; a bad ref or broken checkout fails here instead of
// making every later lookup report a missing file.
func NewRefFS(ref string, dir string) (*RefFS, error) {
	r := &RefFS{
		ref:      ref,
		dir:      dir,
		executor: newRealGitExecutor(dir),
	}
	if err := r.verifyRef(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RefFS) verifyRef() error {
	output, err := r.executor.execute("git", "rev-parse", "--verify", "--quiet", r.ref+"^{commit}")
	if err != nil {
		return fmt.Errorf("ref %s is not available in %s: %w (%s)", r.ref, r.dir, err, bytes.TrimSpace(output))
	}
	return nil
}

// Open reads a file from the ref via git show.
func (r *RefFS) Open(name string) (io.ReadCloser, error) {
	name = strings.TrimPrefix(name, "/")
	output, err := r.executor.execute("git", "show", fmt.Sprintf("%s:%s", r.ref, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s from ref %s: %w", name, r.ref, err)
	}
	return io.NopCloser(bytes.NewReader(output)), nil
}

// Exists checks whether a file exists in the ref via git cat-file. The
// constructor already verified the ref, so a failure here means the path is
// absent from the snapshot.
func (r *RefFS) Exists(name string) bool {
	name = strings.TrimPrefix(name, "/")
	_, err := r.executor.execute("git", "cat-file", "-e", fmt.Sprintf("%s:%s", r.ref, name))
	return err == nil
}
