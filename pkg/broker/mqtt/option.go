package mqtt

import (
	"net/url"

	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Option configures an MQTTBroker.
type Option func(m *MQTTBroker) error

// WithURL returns an Option which set the broker url. Credentials in the
// url take precedence over WithCredentials.
func WithURL(u string) Option {
	return func(m *MQTTBroker) error {
		if u == "" {
			return errors.New("empty broker url")
		}
		uri, err := url.Parse(u)
		if err != nil {
			return errors.Annotate(err, "broker url")
		}
		m.uri = uri
		return nil
	}
}

// WithClientID returns an Option which set the broker client id.
func WithClientID(id string) Option {
	return func(m *MQTTBroker) error {
		m.clientID = id
		return nil
	}
}

// WithCredentials sets the username and password.
func WithCredentials(username, password string) Option {
	return func(m *MQTTBroker) error {
		m.username = username
		m.password = password
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *MQTTBroker) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		m.logger = logger
		return nil
	}
}
