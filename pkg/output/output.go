package output

import (
	"github.com/eldaeon/gqpoll/pkg/sensor"
	"go.uber.org/multierr"
)

type Output interface {
	Publish(sensor.Iteration) error
	Close() error
}

// Multi publishes every iteration to all of its outputs. A failing output
// does not stop the others from receiving the iteration.
type Multi []Output

func (m Multi) Publish(it sensor.Iteration) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.Publish(it))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.Close())
	}
	return err
}

// helper constructors are in subpackages
