package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	QuerierExec       = "exec"
	QuerierSerial     = "serial"
	QuerierSimulation = "simulation"
)

type MQTTConfig struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
	// DiscoveryTopic enables Home Assistant discovery. A %s in the topic is
	// replaced with the metric name (cpm, emf).
	DiscoveryTopic    string `json:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

type CSVConfig struct {
	Path string `json:"path"`
}

type PrometheusConfig struct {
	Listen string `json:"listen"`
}

type OutputConfig struct {
	Type       string            `json:"type"`
	MQTT       *MQTTConfig       `json:"mqtt,omitempty"`
	CSV        *CSVConfig        `json:"csv,omitempty"`
	Prometheus *PrometheusConfig `json:"prometheus,omitempty"`
}

// DeviceConfig describes one instrument. The metric kind is implied by the
// slot it occupies in Config (cpm or emf).
type DeviceConfig struct {
	Device   string `json:"device"`
	Unit     string `json:"unit"`
	Revision string `json:"revision"`
}

type Config struct {
	QuerierType    string         `json:"querier"`
	CLIPath        string         `json:"cli_path"`
	BaudRate       int            `json:"baud_rate"`
	CPM            DeviceConfig   `json:"cpm"`
	EMF            DeviceConfig   `json:"emf"`
	Iterations     int            `json:"iterations"`
	IntervalMs     int            `json:"interval_ms"`
	QueryTimeoutMs int            `json:"query_timeout_ms"`
	Outputs        []OutputConfig `json:"outputs"`
	LogLevel       string         `json:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		QuerierType:    QuerierExec,
		CLIPath:        "./gqe-cli",
		BaudRate:       115200,
		CPM:            DeviceConfig{Device: "/dev/ttyUSB1", Unit: "GMC500Plus", Revision: "Re 2.42"},
		EMF:            DeviceConfig{Device: "/dev/ttyUSB0", Unit: "GQEMF390", Revision: "Re 3.70"},
		Iterations:     0,
		IntervalMs:     1000,
		QueryTimeoutMs: 5000,
		Outputs:        []OutputConfig{{Type: "console"}},
		LogLevel:       "info",
	}
}

// Interval is the delay between consecutive poll iterations.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMs) * time.Millisecond
}

func (c Config) Validate() error {
	switch c.QuerierType {
	case QuerierExec, QuerierSerial, QuerierSimulation:
	default:
		return errors.Errorf("unknown querier %q (exec|serial|simulation)", c.QuerierType)
	}
	if c.Iterations < 0 {
		return errors.New("iterations must be >= 0")
	}
	if c.IntervalMs < 0 {
		return errors.New("interval-ms must be >= 0")
	}
	if c.QueryTimeoutMs < 0 {
		return errors.New("query-timeout-ms must be >= 0")
	}
	if c.CPM.Device == "" || c.EMF.Device == "" {
		return errors.New("both cpm and emf devices are required")
	}
	if c.QuerierType == QuerierSerial && c.BaudRate <= 0 {
		return errors.New("baud rate must be > 0")
	}
	return nil
}

// LoadFromFlags loads configuration from a JSON file (optional) and flags.
// Flags override values present in the JSON file.
func LoadFromFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("gqpoll", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	flagQuerier := fs.String("querier", "", "querier type: exec|serial|simulation")
	flagCLI := fs.String("cli", "", "Path to the gqe-cli executable")
	flagBaud := fs.Int("baud", -1, "Serial baud rate (serial querier)")
	flagCPMDevice := fs.String("cpm-device", "", "CPM instrument device path")
	flagCPMUnit := fs.String("cpm-unit", "", "CPM instrument unit model")
	flagCPMRev := fs.String("cpm-revision", "", "CPM instrument firmware revision")
	flagEMFDevice := fs.String("emf-device", "", "EMF instrument device path")
	flagEMFUnit := fs.String("emf-unit", "", "EMF instrument unit model")
	flagEMFRev := fs.String("emf-revision", "", "EMF instrument firmware revision")
	flagIterations := fs.Int("iterations", -1, "Number of poll iterations (0 = until interrupted)")
	flagInterval := fs.Int("interval-ms", -1, "Delay between iterations in ms")
	flagTimeout := fs.Int("query-timeout-ms", -1, "Per-query timeout in ms (0 = none)")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt,csv,prometheus)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT topic")
	flagCSVPath := fs.String("csv-path", "", "CSV data log path")
	flagMetrics := fs.String("metrics-listen", "", "Address to serve Prometheus /metrics on")
	flagLogLevel := fs.String("log-level", "", "Log level (debug|info|warn|error)")

	cfg := DefaultConfig()
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse config")
		}
	}

	setString(&cfg.QuerierType, *flagQuerier)
	setString(&cfg.CLIPath, *flagCLI)
	setString(&cfg.CPM.Device, *flagCPMDevice)
	setString(&cfg.CPM.Unit, *flagCPMUnit)
	setString(&cfg.CPM.Revision, *flagCPMRev)
	setString(&cfg.EMF.Device, *flagEMFDevice)
	setString(&cfg.EMF.Unit, *flagEMFUnit)
	setString(&cfg.EMF.Revision, *flagEMFRev)
	setString(&cfg.LogLevel, *flagLogLevel)
	if *flagBaud != -1 {
		cfg.BaudRate = *flagBaud
	}
	if *flagIterations != -1 {
		cfg.Iterations = *flagIterations
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagTimeout != -1 {
		cfg.QueryTimeoutMs = *flagTimeout
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}

	// map mqtt flags into the first mqtt output (create one if missing)
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		out := ensureOutput(&cfg, "mqtt")
		if out.MQTT == nil {
			out.MQTT = &MQTTConfig{}
		}
		setString(&out.MQTT.Server, *flagMQTTServer)
		setString(&out.MQTT.Username, *flagMQTTUser)
		setString(&out.MQTT.Password, *flagMQTTPass)
		setString(&out.MQTT.ClientID, *flagClientID)
		setString(&out.MQTT.Topic, *flagTopic)
	}
	if *flagCSVPath != "" {
		out := ensureOutput(&cfg, "csv")
		out.CSV = &CSVConfig{Path: *flagCSVPath}
	}
	if *flagMetrics != "" {
		out := ensureOutput(&cfg, "prometheus")
		out.Prometheus = &PrometheusConfig{Listen: *flagMetrics}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ensureOutput returns the first output of the given type, appending one if
// none is configured.
func ensureOutput(cfg *Config, typ string) *OutputConfig {
	for i := range cfg.Outputs {
		if strings.ToLower(cfg.Outputs[i].Type) == typ {
			return &cfg.Outputs[i]
		}
	}
	cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: typ})
	return &cfg.Outputs[len(cfg.Outputs)-1]
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
