package sensor

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MetricKind selects which measurement is requested from an instrument.
type MetricKind string

const (
	CPM MetricKind = "CPM"
	EMF MetricKind = "EMF"
)

// Flag returns the gqe-cli query flag for the metric.
func (m MetricKind) Flag() string {
	switch m {
	case CPM:
		return "--get-cpm"
	case EMF:
		return "--get-emf"
	default:
		return ""
	}
}

func ParseMetricKind(s string) (MetricKind, error) {
	switch MetricKind(strings.ToUpper(strings.TrimSpace(s))) {
	case CPM:
		return CPM, nil
	case EMF:
		return EMF, nil
	default:
		return "", errors.Errorf("unknown metric kind %q", s)
	}
}

// Descriptor identifies one polling target.
type Descriptor struct {
	DevicePath       string     `json:"device"`
	UnitModel        string     `json:"unit"`
	FirmwareRevision string     `json:"revision"`
	Metric           MetricKind `json:"metric"`
}

type Reading struct {
	Descriptor
	RawOutput string    `json:"raw"`
	Value     *float64  `json:"value"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Found reports whether a numeric value was extracted from the raw output.
func (r Reading) Found() bool { return r.Value != nil }

// Iteration is one pass of the poll loop: a CPM reading followed by an EMF reading.
type Iteration struct {
	Index     int       `json:"iteration"`
	Readings  []Reading `json:"readings"`
	Timestamp time.Time `json:"timestamp"`
}

func (it Iteration) CPM() Reading { return it.reading(CPM) }

func (it Iteration) EMF() Reading { return it.reading(EMF) }

func (it Iteration) reading(kind MetricKind) Reading {
	for _, r := range it.Readings {
		if r.Metric == kind {
			return r
		}
	}
	return Reading{Descriptor: Descriptor{Metric: kind}}
}

// Querier runs a single query against an instrument and returns its textual output.
type Querier interface {
	Query(ctx context.Context, d Descriptor) (string, error)
}
