package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/eldaeon/gqpoll/pkg/config"
	"github.com/eldaeon/gqpoll/pkg/output/console"
	"github.com/eldaeon/gqpoll/pkg/output/csvlog"
	"github.com/eldaeon/gqpoll/pkg/output/prom"
	"github.com/eldaeon/gqpoll/pkg/poll"
	"github.com/eldaeon/gqpoll/pkg/sensor"
	log "github.com/sirupsen/logrus"
)

func TestInitOutputs(t *testing.T) {
	cfg := config.Config{Outputs: []config.OutputConfig{
		{Type: "console"},
		{Type: "CSV", CSV: &config.CSVConfig{Path: filepath.Join(t.TempDir(), "data.csv")}},
		{Type: "prometheus"},
	}}
	outs, err := initOutputs(cfg)
	if err != nil {
		t.Fatalf("initOutputs: %v", err)
	}
	defer outs.Close()
	if len(outs) != 3 {
		t.Fatalf("outputs len: %d", len(outs))
	}
	if _, ok := outs[0].(*console.ConsoleOutput); !ok {
		t.Fatalf("outputs[0] is %T", outs[0])
	}
	if _, ok := outs[1].(*csvlog.CSVOutput); !ok {
		t.Fatalf("outputs[1] is %T", outs[1])
	}
	if _, ok := outs[2].(*prom.PromOutput); !ok {
		t.Fatalf("outputs[2] is %T", outs[2])
	}
}

func TestInitOutputsErrors(t *testing.T) {
	for _, oc := range []config.OutputConfig{
		{Type: "syslog"},
		{Type: "csv"},
	} {
		cfg := config.Config{Outputs: []config.OutputConfig{{Type: "console"}, oc}}
		if _, err := initOutputs(cfg); err == nil {
			t.Fatalf("expected error for output %+v", oc)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	if err := setupLogging("debug"); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level: %s", log.GetLevel())
	}
	if err := setupLogging("chatty"); err == nil {
		t.Fatalf("expected error for bad level")
	}
}

func TestSimulationRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.QuerierType = config.QuerierSimulation
	cfg.Iterations = 2
	cfg.IntervalMs = 0
	cfg.Outputs = []config.OutputConfig{{Type: "csv", CSV: &config.CSVConfig{Path: filepath.Join(t.TempDir(), "data.csv")}}}

	q, err := sensor.NewQuerier(cfg)
	if err != nil {
		t.Fatalf("NewQuerier: %v", err)
	}
	outs, err := initOutputs(cfg)
	if err != nil {
		t.Fatalf("initOutputs: %v", err)
	}
	defer outs.Close()
	s, err := newSession(cfg, q, outs)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Iterations() != 2 || s.State() != poll.StateStopped {
		t.Fatalf("iterations %d state %s", s.Iterations(), s.State())
	}
}
