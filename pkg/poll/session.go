// Package poll drives the device poll loop: each iteration queries the CPM
// instrument, then the EMF instrument, and publishes both readings.
package poll

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eldaeon/gqpoll/pkg/output"
	"github.com/eldaeon/gqpoll/pkg/sensor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePolling:
		return "POLLING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	CPM sensor.Descriptor
	EMF sensor.Descriptor
	// Iterations bounds the run; 0 polls until the context is cancelled.
	Iterations   int
	Interval     time.Duration
	QueryTimeout time.Duration
}

func (c Config) Validate() error {
	if c.CPM.Metric != sensor.CPM || c.EMF.Metric != sensor.EMF {
		return errors.Errorf("descriptors must be CPM then EMF, got %s then %s", c.CPM.Metric, c.EMF.Metric)
	}
	if c.CPM.DevicePath == "" || c.EMF.DevicePath == "" {
		return errors.New("device path required for both descriptors")
	}
	if c.Iterations < 0 {
		return errors.New("iterations must be >= 0")
	}
	if c.Interval < 0 {
		return errors.New("interval must be >= 0")
	}
	return nil
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// Session is one run of the poll loop. It is not safe to call Run concurrently;
// State and Iterations may be read from any goroutine.
type Session struct {
	cfg     Config
	querier sensor.Querier
	out     output.Output
	clock   clock.Clock
	log     logrus.FieldLogger

	state      atomic.Int32
	iterations atomic.Int64
}

func New(cfg Config, q sensor.Querier, out output.Output, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid poll config")
	}
	if q == nil {
		return nil, errors.New("querier required")
	}
	if out == nil {
		out = output.Multi{}
	}
	s := &Session{
		cfg:     cfg,
		querier: q,
		out:     out,
		clock:   clock.New(),
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Session) State() State { return State(s.state.Load()) }

// Iterations returns the number of completed iterations.
func (s *Session) Iterations() int { return int(s.iterations.Load()) }

// Run polls until the iteration bound is reached or ctx is cancelled. Both are
// normal terminations and return nil. Query and output failures never end the run.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return errors.Errorf("session already %s", s.State())
	}
	defer s.state.Store(int32(StateStopped))

	s.log.WithFields(logrus.Fields{
		"iterations": s.cfg.Iterations,
		"interval":   s.cfg.Interval,
	}).Info("polling started")

	for i := 0; s.cfg.Iterations == 0 || i < s.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := s.wait(ctx); err != nil {
				break
			}
		}
		s.runIteration(ctx, i)
	}

	s.log.WithField("completed", s.Iterations()).Info("polling stopped")
	return nil
}

func (s *Session) runIteration(ctx context.Context, index int) {
	it := sensor.Iteration{
		Index:     index,
		Timestamp: s.clock.Now(),
		Readings:  []sensor.Reading{s.PollOnce(ctx, s.cfg.CPM), s.PollOnce(ctx, s.cfg.EMF)},
	}
	if err := s.out.Publish(it); err != nil {
		s.log.WithError(err).WithField("iteration", index).Warn("publish failed")
	}
	s.iterations.Add(1)
	s.log.WithField("iteration", index).Debug("iteration complete")
}

// PollOnce queries one instrument. Failures are recorded on the reading: the
// raw output is left empty and no value is extracted.
func (s *Session) PollOnce(ctx context.Context, d sensor.Descriptor) sensor.Reading {
	r := sensor.Reading{Descriptor: d, Timestamp: s.clock.Now()}
	fields := logrus.Fields{"device": d.DevicePath, "unit": d.UnitModel, "metric": d.Metric}

	qctx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}
	raw, err := s.querier.Query(qctx, d)
	if err != nil {
		r.Err = err.Error()
		s.log.WithFields(fields).WithError(err).Warn("query failed")
		return r
	}
	r.RawOutput = raw
	if v, ok := sensor.ExtractDecimal(raw); ok {
		r.Value = &v
	} else {
		s.log.WithFields(fields).WithField("raw", raw).Info("value not found")
	}
	return r
}

func (s *Session) wait(ctx context.Context) error {
	if s.cfg.Interval == 0 {
		return ctx.Err()
	}
	t := s.clock.Timer(s.cfg.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
