package local

import (
	"context"
	"errors"
	"io"
	"os/exec"

	"github.com/mwantia/asyncvfs/data"
	vfserrors "github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/vfs"
)

// Exec runs args with path as working directory, or the parent of path for files.
// A non-zero exit status is returned as code, not as error.
func (lb *LocalBackend) Exec(ctx context.Context, path string, args []string, handler vfs.ProcessHandler) (int, error) {
	if len(args) == 0 {
		return -1, vfserrors.Invalid(nil, "exec requires a command")
	}

	path = data.Normalize(path)
	stat, err := lb.Stat(ctx, path)
	if err != nil {
		return -1, err
	}
	if !stat.Exists {
		return -1, vfserrors.NotFound(nil, path)
	}

	dir := lb.resolvePath(path)
	if !stat.IsDirectory {
		dir = lb.resolvePath(data.Dir(path))
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout, cmd.Stderr = io.Discard, io.Discard
	if handler != nil {
		cmd.Stdout = handlerWriter(handler.OnOut)
		cmd.Stderr = handlerWriter(handler.OnErr)
	}

	lb.log.Debug("Exec: running %q in %s", args, dir)

	return blocking(ctx, func() (int, error) {
		err := cmd.Run()

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	})
}

type handlerWriter func(p []byte) error

func (w handlerWriter) Write(p []byte) (int, error) {
	if err := w(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
