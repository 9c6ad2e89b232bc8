// Package ledger implements the transactional core of the bookkeeping
// service: the fund-transfer coordinator, cascading account deletion and
// the read-side queries the dashboard needs.
package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/interfaces"
)

// defaultMaxAttempts bounds how many times a transfer's atomic unit is
// re-executed after concurrent modification conflicts.
const defaultMaxAttempts = 5

// Service coordinates all balance mutations. It owns no locks of its own:
// isolation comes entirely from the store's atomic units, so any backend
// with snapshot-or-stronger isolation can be substituted.
type Service struct {
	store       interfaces.Store
	publisher   interfaces.EventPublisher
	log         *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts overrides the conflict retry budget.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides the timestamp source. Tests use this to pin the
// logical timestamp shared by both entries of a transfer.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the ledger service around a store and an event
// publisher.
func NewService(store interfaces.Store, publisher interfaces.EventPublisher, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		publisher:   publisher,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
