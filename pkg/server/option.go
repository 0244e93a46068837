package server

import (
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/broker"
)

// Option configures a Server.
type Option func(s *Server) error

// WithAddr returns an Option which set the server listening address. A
// "unix://" prefix listens on a unix socket.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		s.Addr = addr
		return nil
	}
}

// WithBroker returns an Option which set the server broker for async messaging.
func WithBroker(b broker.Broker) Option {
	return func(s *Server) error {
		s.b = b
		return nil
	}
}

// WithSubscribeTopics returns an Option which set the topics the server
// receives commands on.
func WithSubscribeTopics(topics ...string) Option {
	return func(s *Server) error {
		s.subscribeTopics = topics
		return nil
	}
}

// WithPublishTopic returns an Option which set the topic command replies are
// published to.
func WithPublishTopic(topic string) Option {
	return func(s *Server) error {
		s.publishTopic = topic
		return nil
	}
}

// WithProtector returns an Option which set the protection orchestrator.
func WithProtector(p Protector) Option {
	return func(s *Server) error {
		if p == nil {
			return errors.New("nil protector")
		}
		s.protector = p
		return nil
	}
}

// WithMachineID returns an Option which set the id stamped on published
// messages.
func WithMachineID(id string) Option {
	return func(s *Server) error {
		s.machineID = id
		return nil
	}
}

// WithLogger returns an Option which set the logger for Server.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
