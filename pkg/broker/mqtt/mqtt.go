// Package mqtt implements broker.Broker over an MQTT server.
package mqtt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/broker"
)

const (
	clientDisconnectWaitTimeout = 250
	lastWillStatement           = `{"status": "OFFLINE"}`
)

var _ broker.Broker = (*MQTTBroker)(nil)

const (
	// ErrNoConnection is returned by operations on a broker never connected.
	ErrNoConnection = errors.ConstError("no connection to broker server")
	// ErrNoTopics is returned by Subscribe without topics.
	ErrNoTopics = errors.ConstError("no topics provided")
)

var tokenWaitTimeout = 3 * time.Second

// MQTTBroker implements broker.Broker interface.
type MQTTBroker struct {
	uri      *url.URL
	username string
	password string
	clientID string
	client   mqtt.Client
	qos      byte
	retained bool
	logger   *zap.Logger

	// Resubscribed on every (re)connection.
	subscribeTopics  []string
	subscribeHandler broker.Handler
}

// NewBroker creates new mqtt broker.
func NewBroker(opts ...Option) (*MQTTBroker, error) {
	m := &MQTTBroker{qos: 1}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.uri == nil {
		return nil, errors.New("broker url is required")
	}
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		m.logger = l
	}
	m.logger = m.logger.With(zap.String("client_id", m.clientID))
	return m, nil
}

func (m *MQTTBroker) opts() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + m.uri.Host)
	username := m.username
	if u := m.uri.User.Username(); u != "" {
		username = u
	}
	opts.SetUsername(username)
	password := m.password
	if p, isSet := m.uri.User.Password(); isSet {
		password = p
	}
	opts.SetPassword(password)
	opts.SetClientID(m.clientID)
	opts.SetCleanSession(false)

	opts.OnConnect = func(client mqtt.Client) {
		m.logger.Info("connected to broker")
		if m.subscribeHandler == nil || len(m.subscribeTopics) == 0 {
			return
		}
		if err := m.Subscribe(m.subscribeTopics, m.subscribeHandler); err != nil {
			m.logger.Error("resubscribe failed", zap.Error(err), zap.Strings("topics", m.subscribeTopics))
			return
		}
		m.logger.Debug("resubscribed", zap.Strings("topics", m.subscribeTopics))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		m.logger.Error("connection lost with broker", zap.Error(err))
	}
	opts.OnReconnecting = func(client mqtt.Client, opts *mqtt.ClientOptions) {
		m.logger.Warn("reconnecting to broker")
	}

	opts.SetWill("agent/"+m.clientID+"/status", lastWillStatement, 0, false)
	return opts
}

// ConnectAndSubscribe connects and subscribes subHandler to subTopics on
// every (re)connection.
func (m *MQTTBroker) ConnectAndSubscribe(subHandler broker.Handler, subTopics []string) error {
	m.subscribeHandler = subHandler
	m.subscribeTopics = subTopics

	return m.Connect()
}

// Connect connects to the broker server.
func (m *MQTTBroker) Connect() error {
	client := mqtt.NewClient(m.opts())
	if err := wait(client.Connect()); err != nil {
		return errors.Annotatef(err, "connect to %s", m.uri.Host)
	}
	m.client = client
	return nil
}

// Disconnect closes the connection.
func (m *MQTTBroker) Disconnect() error {
	if m.client == nil {
		return ErrNoConnection
	}
	m.client.Disconnect(clientDisconnectWaitTimeout)
	return nil
}

// Publish sends payload to topic. Payloads other than strings and byte
// slices are encoded as JSON.
func (m *MQTTBroker) Publish(topic string, payload interface{}) error {
	if m.client == nil {
		return ErrNoConnection
	}
	switch payload.(type) {
	case string, []byte:
	default:
		buf, err := json.Marshal(payload)
		if err != nil {
			return errors.Annotate(err, "encode payload")
		}
		payload = buf
	}
	return errors.Annotatef(wait(m.client.Publish(topic, m.qos, m.retained, payload)), "publish to %s", topic)
}

// Subscribe calls h for every message on topics.
func (m *MQTTBroker) Subscribe(topics []string, h broker.Handler) error {
	if m.client == nil {
		return ErrNoConnection
	}
	if len(topics) == 0 {
		return ErrNoTopics
	}
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = m.qos
	}

	token := m.client.SubscribeMultiple(filters, func(client mqtt.Client, msg mqtt.Message) {
		if err := h(broker.Event{
			Topic:     msg.Topic(),
			Payload:   msg.Payload(),
			Duplicate: msg.Duplicate(),
			Qos:       msg.Qos(),
			Retained:  msg.Retained(),
			Ack:       msg.Ack,
		}); err != nil {
			m.logger.Error("handle message", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	return errors.Annotatef(wait(token), "subscribe to %v", topics)
}

func (m *MQTTBroker) String() string {
	return fmt.Sprintf("Broker [%s]", m.clientID)
}

// wait blocks until the token completes.
func wait(token mqtt.Token) error {
	for !token.WaitTimeout(tokenWaitTimeout) {
	}
	return token.Error()
}
