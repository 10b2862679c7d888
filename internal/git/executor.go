package git

import "os/exec"

// gitCommandExecutor abstracts command execution so tests can fake git.
type gitCommandExecutor interface {
	execute(command string, args ...string) ([]byte, error)
}

type realGitExecutor struct {
	dir string
}

func newRealGitExecutor(dir string) *realGitExecutor {
	return &realGitExecutor{dir: dir}
}

func (e *realGitExecutor) execute(command string, args ...string) ([]byte, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = e.dir
	return cmd.CombinedOutput()
}
