package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/metrics"
	"github.com/kassabook/ledger-service/internal/models"
	"github.com/kassabook/ledger-service/internal/models/events"
)

// Transfer atomically moves amount from the source account to the target
// account. Inside one atomic unit it re-reads both balances, validates the
// source can cover the amount, appends one expense and one income entry
// sharing a logical timestamp, and writes both new balances. On a
// concurrent modification conflict the whole unit is re-executed from its
// reads, up to the retry budget.
func (s *Service) Transfer(ctx context.Context, sourceID, targetID string, amount decimal.Decimal, description string) (models.Transfer, error) {
	started := time.Now()

	if amount.Sign() <= 0 {
		metrics.TransfersTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return models.Transfer{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if sourceID == targetID {
		metrics.TransfersTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return models.Transfer{}, ErrSameAccount
	}

	var (
		transfer models.Transfer
		lastErr  error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		transfer, lastErr = s.attempt(ctx, sourceID, targetID, amount, description)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, interfaces.ErrConflict) {
			metrics.TransfersTotal.WithLabelValues(outcomeFor(lastErr)).Inc()
			return models.Transfer{}, lastErr
		}
		metrics.TransferRetries.Inc()
		s.log.Debug("transfer conflicted, retrying",
			zap.String("source_id", sourceID),
			zap.String("target_id", targetID),
			zap.Int("attempt", attempt))
	}
	if lastErr != nil {
		metrics.TransfersTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		return models.Transfer{}, fmt.Errorf("%w: %d conflicting attempts: %v", ErrTransferFailed, s.maxAttempts, lastErr)
	}

	metrics.TransfersTotal.WithLabelValues(metrics.OutcomeCommitted).Inc()
	metrics.TransferDuration.Observe(time.Since(started).Seconds())
	s.log.Info("transfer committed",
		zap.String("transfer_id", transfer.ID),
		zap.String("source_id", sourceID),
		zap.String("target_id", targetID),
		zap.String("amount", amount.String()))

	s.publish(events.TopicTransferCompleted, events.TransferCompleted{
		TransferID:  transfer.ID,
		SourceID:    transfer.SourceID,
		TargetID:    transfer.TargetID,
		SourceTitle: transfer.SourceTitle,
		TargetTitle: transfer.TargetTitle,
		Amount:      transfer.Amount,
		Description: transfer.Description,
		OccurredAt:  transfer.CreatedAt,
	})
	return transfer, nil
}

// attempt runs one execution of the transfer's atomic unit. All state it
// produces is derived from in-unit reads, so re-running it after a
// conflict cannot double-apply.
func (s *Service) attempt(ctx context.Context, sourceID, targetID string, amount decimal.Decimal, description string) (models.Transfer, error) {
	var transfer models.Transfer

	err := s.store.RunAtomicUnit(ctx, func(ctx context.Context, tx interfaces.AtomicTx) error {
		source, err := tx.Account(ctx, sourceID)
		if err != nil {
			return mapNotFound(err, sourceID)
		}
		target, err := tx.Account(ctx, targetID)
		if err != nil {
			return mapNotFound(err, targetID)
		}

		if source.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, source.Balance, amount)
		}

		now := s.now().UTC()
		debit := models.LedgerEntry{
			ID:          uuid.New().String(),
			AccountID:   source.ID,
			FromTitle:   source.Title,
			ToTitle:     target.Title,
			Amount:      amount.Neg(),
			Kind:        models.KindExpense,
			Description: description,
			CreatedAt:   now,
		}
		credit := models.LedgerEntry{
			ID:          uuid.New().String(),
			AccountID:   target.ID,
			FromTitle:   source.Title,
			ToTitle:     target.Title,
			Amount:      amount,
			Kind:        models.KindIncome,
			Description: description,
			CreatedAt:   now,
		}

		if err := tx.InsertEntry(ctx, debit); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, credit); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, source.ID, source.Balance.Sub(amount)); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, target.ID, target.Balance.Add(amount)); err != nil {
			return err
		}

		transfer = models.Transfer{
			ID:          uuid.New().String(),
			SourceID:    source.ID,
			TargetID:    target.ID,
			SourceTitle: source.Title,
			TargetTitle: target.Title,
			Amount:      amount,
			Description: description,
			CreatedAt:   now,
		}
		return nil
	})
	if err != nil {
		return models.Transfer{}, err
	}
	return transfer, nil
}

// AdjustBalance sets an account's balance directly. Direct edits go
// through the same atomic-unit discipline as transfers so they cannot race
// with a concurrent transfer's read-validate-write sequence.
func (s *Service) AdjustBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.store.RunAtomicUnit(ctx, func(ctx context.Context, tx interfaces.AtomicTx) error {
			if _, err := tx.Account(ctx, accountID); err != nil {
				return mapNotFound(err, accountID)
			}
			return tx.UpdateBalance(ctx, accountID, balance)
		})
		if errors.Is(err, interfaces.ErrConflict) {
			metrics.TransferRetries.Inc()
			continue
		}
		return err
	}
	return fmt.Errorf("%w: balance edit conflicted %d times", ErrTransferFailed, s.maxAttempts)
}

func (s *Service) publish(topic string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(topic, event); err != nil {
		s.log.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func mapNotFound(err error, accountID string) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return err
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return metrics.OutcomeInsufficientFunds
	case errors.Is(err, ErrAccountNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
