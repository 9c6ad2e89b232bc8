package interfaces

// EventPublisher emits domain events after state changes commit.
// Publishing is best-effort: a failed publish never rolls back the
// committed change.
type EventPublisher interface {
	Publish(topic string, event any) error
	Close() error
}
