package console

import (
	"fmt"
	"strconv"

	"github.com/eldaeon/gqpoll/pkg/output"
	"github.com/eldaeon/gqpoll/pkg/sensor"
)

const notFound = "not found"

type ConsoleOutput struct{}

func NewConsole() output.Output { return &ConsoleOutput{} }

// Publish prints the iteration index, both raw outputs and the extracted EMF
// value. All four lines are printed even when a query failed.
func (c *ConsoleOutput) Publish(it sensor.Iteration) error {
	emf := it.EMF()
	value := notFound
	if emf.Found() {
		value = strconv.FormatFloat(*emf.Value, 'g', -1, 64)
	}
	fmt.Printf("Iteration: %d\n", it.Index)
	fmt.Printf("CPM: %s\n", it.CPM().RawOutput)
	fmt.Printf("EMF: %s\n", emf.RawOutput)
	fmt.Printf("EMF value: %s\n", value)
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
