package sensor

import (
	"github.com/eldaeon/gqpoll/pkg/config"
	"github.com/pkg/errors"
)

// Descriptors builds the two fixed polling targets from the config, CPM first.
func Descriptors(cfg config.Config) (cpm Descriptor, emf Descriptor) {
	cpm = Descriptor{DevicePath: cfg.CPM.Device, UnitModel: cfg.CPM.Unit, FirmwareRevision: cfg.CPM.Revision, Metric: CPM}
	emf = Descriptor{DevicePath: cfg.EMF.Device, UnitModel: cfg.EMF.Unit, FirmwareRevision: cfg.EMF.Revision, Metric: EMF}
	return
}

// NewQuerier returns the querier selected by cfg.QuerierType.
func NewQuerier(cfg config.Config) (Querier, error) {
	switch cfg.QuerierType {
	case config.QuerierExec, "":
		return NewGQECLI(cfg.CLIPath), nil
	case config.QuerierSerial:
		return NewGQSerial(cfg.BaudRate, cfg.QueryTimeout()), nil
	case config.QuerierSimulation:
		return NewSimulation(0), nil
	default:
		return nil, errors.Errorf("unknown querier %q", cfg.QuerierType)
	}
}
