package git

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

type DiffContext struct {
	Base       string
	Head       string
	Dir        string
	IgnoreDirs []string
}

// ChangedFiles returns the paths changed between Base and Head, relative to
// the repository root, with files under IgnoreDirs filtered out. Deleted
// files are excluded since they no longer need owner review.
func ChangedFiles(context DiffContext) ([]string, error) {
	cmd := exec.Command("git", "diff", "-U0", fmt.Sprintf("%s...%s", context.Base, context.Head))
	cmd.Dir = context.Dir
	cmdOutput, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("Diff Error: %s\n%s\n", err, cmdOutput)
	}
	gitDiff, err := diff.ParseMultiFileDiff(cmdOutput)
	if err != nil {
		return nil, err
	}
	return filesFromDiff(gitDiff, context.IgnoreDirs), nil
}

func filesFromDiff(fileDiffs []*diff.FileDiff, ignoreDirs []string) []string {
	files := make([]string, 0, len(fileDiffs))
	for _, d := range fileDiffs {
		// Git names the post-change side "b/<path>"; a deleted file shows
		// up as /dev/null.
		name := d.NewName
		if name == "/dev/null" {
			continue
		}
		name = strings.TrimPrefix(name, "b/")
		ignored := false
		for _, dir := range ignoreDirs {
			if strings.HasPrefix(name, dir) {
				ignored = true
				break
			}
		}
		if !ignored {
			files = append(files, name)
		}
	}
	return files
}
