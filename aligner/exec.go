package aligner

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// ExecRunner runs commands as local processes.
type ExecRunner struct{}

// Output implements Runner.Output.
func (ExecRunner) Output(ctx context.Context, argv []string) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Run implements Runner.Run. Output files are created, or truncated, before
// the process starts.
func (ExecRunner) Run(ctx context.Context, c Command) (err error) {
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if c.Stdout != "" {
		var f file.File
		if f, err = file.Create(ctx, c.Stdout); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, f, &err)
		cmd.Stdout = f.Writer(ctx)
	}
	if c.CombineOutput {
		cmd.Stderr = cmd.Stdout
	} else if c.Stderr != "" {
		var f file.File
		if f, err = file.Create(ctx, c.Stderr); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, f, &err)
		cmd.Stderr = f.Writer(ctx)
	}
	if err = cmd.Run(); err != nil {
		logPath := c.Stderr
		if c.CombineOutput {
			logPath = c.Stdout
		}
		return errors.E(err, c.Argv[0], "failed; see", logPath)
	}
	return nil
}
