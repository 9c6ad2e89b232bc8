package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/metrics"
	"github.com/kassabook/ledger-service/internal/models/events"
)

// DeleteAccount removes an account. With cascade=false only the single
// account document is deleted and its ledger entries are deliberately left
// in place (dangling references are an accepted, tested outcome). With
// cascade=true every account sharing the title, plus every entry
// referencing any of those accounts, is removed in one all-or-nothing
// batch.
func (s *Service) DeleteAccount(ctx context.Context, id, title string, cascade bool) error {
	if !cascade {
		refs := []interfaces.DocRef{{Collection: interfaces.CollectionAccounts, ID: id}}
		if err := s.store.BatchDelete(ctx, refs); err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}
		s.publish(events.TopicAccountDeleted, events.AccountDeleted{
			AccountID:       id,
			Title:           title,
			AccountsRemoved: 1,
			OccurredAt:      s.now().UTC(),
		})
		return nil
	}

	accounts, err := s.store.AccountsByTitle(ctx, title)
	if err != nil {
		return fmt.Errorf("%w: find accounts titled %q: %v", ErrDeleteFailed, title, err)
	}

	var refs []interfaces.DocRef
	entriesRemoved := 0
	for _, account := range accounts {
		entries, err := s.store.EntriesByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("%w: find entries for %s: %v", ErrDeleteFailed, account.ID, err)
		}
		for _, entry := range entries {
			refs = append(refs, interfaces.DocRef{Collection: interfaces.CollectionEntries, ID: entry.ID})
			entriesRemoved++
		}
		refs = append(refs, interfaces.DocRef{Collection: interfaces.CollectionAccounts, ID: account.ID})
	}

	if err := s.store.BatchDelete(ctx, refs); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	metrics.CascadeDeletes.Inc()
	s.log.Info("cascading delete committed",
		zap.String("title", title),
		zap.Int("accounts", len(accounts)),
		zap.Int("entries", entriesRemoved))

	s.publish(events.TopicAccountDeleted, events.AccountDeleted{
		AccountID:       id,
		Title:           title,
		Cascade:         true,
		AccountsRemoved: len(accounts),
		EntriesRemoved:  entriesRemoved,
		OccurredAt:      s.now().UTC(),
	})
	return nil
}
