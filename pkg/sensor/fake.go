package sensor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Simulation produces plausible instrument output without touching hardware.
type Simulation struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulation returns a simulated querier. A zero seed uses the current time.
func NewSimulation(seed int64) *Simulation {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulation{rnd: rand.New(rand.NewSource(seed))}
}

func (s *Simulation) Query(ctx context.Context, d Descriptor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch d.Metric {
	case CPM:
		// background radiation sits around 10..40 CPM
		return fmt.Sprintf("%d", 10+s.rnd.Intn(31)), nil
	case EMF:
		return fmt.Sprintf("EMF = %.1f mG", s.rnd.Float64()*5), nil
	default:
		return "", errors.Errorf("unsupported metric %q", d.Metric)
	}
}
