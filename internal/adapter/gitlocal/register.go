package gitlocal

import (
	"fmt"
	"strconv"

	"github.com/deploypilot/deploypilot/internal/git"
	"github.com/deploypilot/deploypilot/internal/port/repository"
)

// Config keys understood by the registered factory.
const (
	ConfigRoot     = "root"
	ConfigGitProcs = "git_procs"
)

func init() {
	repository.Register(readerName, func(cfg map[string]string) (repository.Reader, error) {
		root := cfg[ConfigRoot]
		if root == "" {
			root = "."
		}
		procs := 4
		if v := cfg[ConfigGitProcs]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("gitlocal: invalid %s %q: %w", ConfigGitProcs, v, err)
			}
			procs = n
		}
		return NewReader(root, git.NewRunner(procs)), nil
	})
}
