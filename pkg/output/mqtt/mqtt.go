package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eldaeon/gqpoll/pkg/config"
	"github.com/eldaeon/gqpoll/pkg/output"
	"github.com/eldaeon/gqpoll/pkg/sensor"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// defaults
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "gqpoll"
	DefaultTopic    = "clair/sensors/environment"
	timestampLayout = "2006-01-02 15:04:05"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	stateClassMeasurement  = "measurement"
)

// metric units as reported by the GQ instruments
var units = map[sensor.MetricKind]string{
	sensor.CPM: "CPM",
	sensor.EMF: "mG",
}

// Payload is the JSON document published for each iteration. Missing values
// are encoded as null.
type Payload struct {
	Timestamp string   `json:"timestamp"`
	Iteration int      `json:"iteration"`
	CPM       *float64 `json:"cpm"`
	EMF       *float64 `json:"emf"`
	CPMRaw    string   `json:"cpm_raw"`
	EMFRaw    string   `json:"emf_raw"`
}

func NewPayload(it sensor.Iteration) Payload {
	cpm, emf := it.CPM(), it.EMF()
	return Payload{
		Timestamp: it.Timestamp.Format(timestampLayout),
		Iteration: it.Index,
		CPM:       cpm.Value,
		EMF:       emf.Value,
		CPMRaw:    cpm.RawOutput,
		EMFRaw:    emf.RawOutput,
	}
}

type MQTTOutput struct {
	client mqtt.Client
	topic  string
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	server := cfg.Server
	if server == "" {
		server = DefaultServer
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(server).SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "mqtt connect")
	}
	cfg.ClientID = clientID
	return newMQTTOutput(client, cfg), nil
}

func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig) *MQTTOutput {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	m := &MQTTOutput{client: client, topic: topic}

	// Publish Home Assistant discovery payloads if requested
	if cfg.DiscoveryTopic != "" {
		for _, kind := range []sensor.MetricKind{sensor.CPM, sensor.EMF} {
			dTopic := cfg.DiscoveryTopic
			if strings.Contains(dTopic, "%s") {
				dTopic = fmt.Sprintf(dTopic, strings.ToLower(string(kind)))
			}
			payload := discoveryPayload(cfg, kind, topic)
			if err := publishJSON(client, dTopic, true, payload); err != nil {
				log.WithError(err).WithField("topic", dTopic).Warn("mqtt discovery publish failed")
			}
		}
	}
	return m
}

func (m *MQTTOutput) Publish(it sensor.Iteration) error {
	b, err := json.Marshal(NewPayload(it))
	if err != nil {
		return err
	}
	return m.PublishRaw(m.topic, b, false)
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return errors.New("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// helper: discovery payload for one metric; both metrics share the state topic
func discoveryPayload(cfg config.MQTTConfig, kind sensor.MetricKind, stateTopic string) map[string]interface{} {
	metric := strings.ToLower(string(kind))
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("GQ %s", cfg.ClientID)
	}
	payload := map[string]interface{}{
		keyName:                fmt.Sprintf("%s %s", name, metric),
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   units[kind],
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       fmt.Sprintf("{{ value_json.%s }}", metric),
		keyJSONAttributesTopic: stateTopic,
	}
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" {
		payload[keyUniqueID] = fmt.Sprintf("%s_%s", uid, metric)
	}
	return payload
}

// helper: marshal and publish JSON payload
func publishJSON(client mqtt.Client, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
