package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eldaeon/gqpoll/pkg/config"
	"github.com/eldaeon/gqpoll/pkg/output"
	"github.com/eldaeon/gqpoll/pkg/output/console"
	"github.com/eldaeon/gqpoll/pkg/output/csvlog"
	"github.com/eldaeon/gqpoll/pkg/output/mqtt"
	"github.com/eldaeon/gqpoll/pkg/output/prom"
	"github.com/eldaeon/gqpoll/pkg/poll"
	"github.com/eldaeon/gqpoll/pkg/sensor"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func init() {
	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	cfg, err := config.LoadFromFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		log.Fatalf("config: %s", err)
	}

	q, err := sensor.NewQuerier(cfg)
	if err != nil {
		log.Fatalf("querier: %s", err)
	}
	outs, err := initOutputs(cfg)
	if err != nil {
		log.Fatalf("outputs: %s", err)
	}
	defer func() {
		if err := outs.Close(); err != nil {
			log.Errorf("closing outputs: %s", err)
		}
	}()

	session, err := newSession(cfg, q, outs)
	if err != nil {
		_ = outs.Close()
		log.Fatalf("session: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"querier": cfg.QuerierType,
		"cpm":     cfg.CPM.Device,
		"emf":     cfg.EMF.Device,
	}).Info("starting")
	if err := session.Run(ctx); err != nil {
		log.Errorf("poll: %s", err)
	}
}

func setupLogging(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	log.SetLevel(lvl)
	return nil
}

func newSession(cfg config.Config, q sensor.Querier, out output.Output) (*poll.Session, error) {
	cpm, emf := sensor.Descriptors(cfg)
	return poll.New(poll.Config{
		CPM:          cpm,
		EMF:          emf,
		Iterations:   cfg.Iterations,
		Interval:     cfg.Interval(),
		QueryTimeout: cfg.QueryTimeout(),
	}, q, out, poll.WithLogger(log.StandardLogger()))
}

// initOutputs builds every configured output. Outputs already opened are
// closed again if a later one fails.
func initOutputs(cfg config.Config) (output.Multi, error) {
	outs := make(output.Multi, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		o, err := newOutput(oc)
		if err != nil {
			_ = outs.Close()
			return nil, errors.Wrapf(err, "output %q", oc.Type)
		}
		outs = append(outs, o)
	}
	return outs, nil
}

func newOutput(oc config.OutputConfig) (output.Output, error) {
	switch strings.ToLower(oc.Type) {
	case "console":
		return console.NewConsole(), nil
	case "mqtt":
		mc := config.MQTTConfig{}
		if oc.MQTT != nil {
			mc = *oc.MQTT
		}
		return mqtt.NewMQTT(mc)
	case "csv":
		if oc.CSV == nil || oc.CSV.Path == "" {
			return nil, errors.New("csv output requires a path")
		}
		return csvlog.NewCSV(oc.CSV.Path)
	case "prometheus":
		listen := ""
		if oc.Prometheus != nil {
			listen = oc.Prometheus.Listen
		}
		return prom.NewPrometheus(listen)
	default:
		return nil, errors.Errorf("unknown output type %q", oc.Type)
	}
}
