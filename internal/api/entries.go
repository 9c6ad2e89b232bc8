package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
)

type entryResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	FromTitle   string `json:"from_title"`
	ToTitle     string `json:"to_title"`
	Amount      string `json:"amount"`
	Formatted   string `json:"formatted"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func toEntryResponse(e models.LedgerEntry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		FromTitle:   e.FromTitle,
		ToTitle:     e.ToTitle,
		Amount:      e.Amount.String(),
		Formatted:   formatTenge(e.Amount),
		Kind:        string(e.Kind),
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format(timeLayout),
	}
}

// handleListEntries serves the ledger feed: newest first, paginated,
// optionally narrowed by account and date range.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	filter := interfaces.EntryFilter{
		AccountID: r.URL.Query().Get("account_id"),
		Limit:     20,
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 100"})
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "offset must not be negative"})
			return
		}
		filter.Offset = n
	}

	var err error
	if filter.From, filter.To, err = parseDateRange(r); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entries, total, err := s.ledger.Entries(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toEntryResponse(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// handleDailyReport serves the per-day income/expense/net summary.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	// Default to the last 30 days, matching the dashboard.
	if from.IsZero() && to.IsZero() {
		now := time.Now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		from = today.AddDate(0, 0, -29)
		to = today.AddDate(0, 0, 1)
	}

	report, err := s.ledger.DailyReport(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": report})
}

// parseDateRange reads from/to query params as YYYY-MM-DD. The to date is
// treated as inclusive by advancing it one day.
func parseDateRange(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from must be a date in YYYY-MM-DD format")
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to must be a date in YYYY-MM-DD format")
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}
