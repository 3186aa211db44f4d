package sensor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// waitDelay bounds how long a killed gqe-cli may hold its output pipes open.
const waitDelay = 2 * time.Second

// GQECLI queries instruments by running the gqe-cli tool once per reading.
type GQECLI struct {
	Path string
}

func NewGQECLI(path string) *GQECLI {
	return &GQECLI{Path: path}
}

// Args returns the command line arguments for a single query.
func (g *GQECLI) Args(d Descriptor) []string {
	return []string{d.DevicePath, "--unit", d.UnitModel, "--revision", d.FirmwareRevision, d.Metric.Flag()}
}

func (g *GQECLI) Query(ctx context.Context, d Descriptor) (string, error) {
	if d.Metric.Flag() == "" {
		return "", errors.Errorf("unsupported metric %q", d.Metric)
	}
	cmd := exec.CommandContext(ctx, g.Path, g.Args(d)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrapf(ctxErr, "%s %s", g.Path, d.Metric.Flag())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.Wrapf(err, "%s %s: %s", g.Path, d.Metric.Flag(), msg)
		}
		return "", errors.Wrapf(err, "%s %s", g.Path, d.Metric.Flag())
	}
	return strings.TrimSpace(stdout.String()), nil
}
