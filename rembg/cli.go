package rembg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	lookPath    = exec.LookPath
	execCommand = exec.CommandContext
)

// cliRemover 通过 `rembg i -m <model> [-a] - -` 在标准输入输出上传递 PNG
type cliRemover struct {
	bin     string
	model   string
	matting bool
	timeout time.Duration
}

func newCLIRemover(bin, model string, matting bool, timeout time.Duration) (*cliRemover, error) {
	path, err := lookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("rembg command %q not found: %w", bin, err)
	}
	return &cliRemover{bin: path, model: model, matting: matting, timeout: timeout}, nil
}

func (r *cliRemover) Name() string {
	return fmt.Sprintf("rembg cli (%s)", r.model)
}

func (r *cliRemover) args() []string {
	args := []string{"i", "-m", r.model}
	if r.matting {
		args = append(args, "-a")
	}
	return append(args, "-", "-")
}

func (r *cliRemover) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := execCommand(ctx, r.bin, r.args()...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rembg: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("rembg: %w", err)
		}
		return nil, fmt.Errorf("rembg: %w: %s", err, msg)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("rembg: empty output")
	}
	return stdout.Bytes(), nil
}
