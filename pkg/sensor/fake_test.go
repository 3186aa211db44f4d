package sensor

import (
	"context"
	"testing"

	"github.com/eldaeon/gqpoll/pkg/config"
)

func TestSimulationProducesParseableOutput(t *testing.T) {
	s := NewSimulation(42)
	for i := 0; i < 20; i++ {
		for _, m := range []MetricKind{CPM, EMF} {
			out, err := s.Query(context.Background(), Descriptor{Metric: m})
			if err != nil {
				t.Fatalf("query %s: %v", m, err)
			}
			if _, ok := ExtractDecimal(out); !ok {
				t.Fatalf("%s output %q has no value", m, out)
			}
		}
	}
	if _, err := s.Query(context.Background(), Descriptor{Metric: "RF"}); err == nil {
		t.Fatalf("expected error for unsupported metric")
	}
}

func TestDescriptorsFromConfig(t *testing.T) {
	cpm, emf := Descriptors(config.DefaultConfig())
	want := Descriptor{DevicePath: "/dev/ttyUSB1", UnitModel: "GMC500Plus", FirmwareRevision: "Re 2.42", Metric: CPM}
	if cpm != want {
		t.Fatalf("cpm: got %+v want %+v", cpm, want)
	}
	want = Descriptor{DevicePath: "/dev/ttyUSB0", UnitModel: "GQEMF390", FirmwareRevision: "Re 3.70", Metric: EMF}
	if emf != want {
		t.Fatalf("emf: got %+v want %+v", emf, want)
	}
}

func TestNewQuerier(t *testing.T) {
	cfg := config.DefaultConfig()
	for typ, check := range map[string]func(Querier) bool{
		config.QuerierExec:       func(q Querier) bool { _, ok := q.(*GQECLI); return ok },
		config.QuerierSerial:     func(q Querier) bool { _, ok := q.(*GQSerial); return ok },
		config.QuerierSimulation: func(q Querier) bool { _, ok := q.(*Simulation); return ok },
	} {
		cfg.QuerierType = typ
		q, err := NewQuerier(cfg)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if !check(q) {
			t.Fatalf("%s: wrong querier %T", typ, q)
		}
	}
	cfg.QuerierType = "usb"
	if _, err := NewQuerier(cfg); err == nil {
		t.Fatalf("expected error for unknown querier")
	}
}
