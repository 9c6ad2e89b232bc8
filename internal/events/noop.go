// Package events provides publisher implementations that are not tied to
// a broker.
package events

import "github.com/kassabook/ledger-service/internal/interfaces"

// NopPublisher discards every event. Used when no brokers are configured
// and in tests.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(string, any) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

var _ interfaces.EventPublisher = NopPublisher{}
