package csvlog

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/eldaeon/gqpoll/pkg/output"
	"github.com/eldaeon/gqpoll/pkg/sensor"
	"github.com/pkg/errors"
)

const timestampLayout = "2006-01-02 15:04:05"

var header = []string{"date-time", "cpm", "emf"}

// CSVOutput appends one row per iteration to a data log file.
type CSVOutput struct {
	f *os.File
	w *csv.Writer
}

// NewCSV opens path for appending and writes the header when the file is new.
func NewCSV(path string) (output.Output, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open csv log")
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat csv log")
	}
	c := &CSVOutput{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := c.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *CSVOutput) Publish(it sensor.Iteration) error {
	return c.write([]string{
		it.Timestamp.Format(timestampLayout),
		formatValue(it.CPM()),
		formatValue(it.EMF()),
	})
}

func (c *CSVOutput) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

func (c *CSVOutput) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return errors.Wrap(err, "write csv row")
	}
	c.w.Flush()
	return errors.Wrap(c.w.Error(), "flush csv log")
}

// formatValue leaves the field empty when no value was extracted.
func formatValue(r sensor.Reading) string {
	if !r.Found() {
		return ""
	}
	return strconv.FormatFloat(*r.Value, 'g', -1, 64)
}
