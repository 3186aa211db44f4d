package sensor

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
)

const (
	cmdGetCPM = "<GETCPM>>"
	cmdGetEMF = "<GETEMF>>"

	cpmResponseLen = 4
	maxTextLen     = 64
)

// openPort opens a serial device. It's a variable so tests can swap in a fake port.
var openPort = func(devicePath string, baud int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	mode := &ser.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   ser.NoParity,
		StopBits: ser.OneStopBit,
	}
	p, err := ser.Open(devicePath, mode)
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// GQSerial talks the GQ serial command protocol directly, without gqe-cli.
// The port is opened and closed around every query.
type GQSerial struct {
	BaudRate    int
	ReadTimeout time.Duration
}

func NewGQSerial(baud int, readTimeout time.Duration) *GQSerial {
	if readTimeout <= 0 || readTimeout > time.Second {
		readTimeout = time.Second
	}
	return &GQSerial{BaudRate: baud, ReadTimeout: readTimeout}
}

func (g *GQSerial) Query(ctx context.Context, d Descriptor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var cmd string
	switch d.Metric {
	case CPM:
		cmd = cmdGetCPM
	case EMF:
		cmd = cmdGetEMF
	default:
		return "", errors.Errorf("unsupported metric %q", d.Metric)
	}

	p, err := openPort(d.DevicePath, g.BaudRate, g.ReadTimeout)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", d.DevicePath)
	}
	defer p.Close()

	if r, ok := p.(interface{ ResetInputBuffer() error }); ok {
		_ = r.ResetInputBuffer()
	}
	if _, err := p.Write([]byte(cmd)); err != nil {
		return "", errors.Wrapf(err, "write %s to %s", cmd, d.DevicePath)
	}

	if d.Metric == CPM {
		buf, err := readResponse(ctx, p, cpmResponseLen, false)
		if err != nil {
			return "", errors.Wrapf(err, "read %s", d.DevicePath)
		}
		if len(buf) != cpmResponseLen {
			return "", errors.Errorf("%s: short CPM response (%d bytes)", d.DevicePath, len(buf))
		}
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(buf)), 10), nil
	}

	buf, err := readResponse(ctx, p, maxTextLen, true)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", d.DevicePath)
	}
	text := strings.TrimSpace(string(buf))
	if text == "" {
		return "", errors.Errorf("%s: empty EMF response", d.DevicePath)
	}
	return text, nil
}

// readResponse reads until limit bytes arrive, a read times out (zero-length
// read), or, when untilNewline is set, a '\n' is seen. Anything after the
// first newline is dropped.
func readResponse(ctx context.Context, r io.Reader, limit int, untilNewline bool) ([]byte, error) {
	out := make([]byte, 0, limit)
	chunk := make([]byte, limit)
	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		n, err := r.Read(chunk[:limit-len(out)])
		out = append(out, chunk[:n]...)
		if err != nil && err != io.EOF {
			return out, err
		}
		if err == io.EOF || n == 0 {
			break
		}
		if untilNewline && bytes.IndexByte(chunk[:n], '\n') >= 0 {
			break
		}
	}
	if untilNewline {
		if i := bytes.IndexByte(out, '\n'); i >= 0 {
			out = out[:i+1]
		}
	}
	return out, nil
}
