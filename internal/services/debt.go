package services

import (
	"context"
	"net/http"

	"finflow/internal/core"
	"finflow/internal/notify"
)

const debtsPath = "/api/debts"

// DebtService is the debt facade.
type DebtService struct {
	*resource[core.Debt]
}

// NewDebtService creates the debt facade over d.
func NewDebtService(d Deps) *DebtService {
	return &DebtService{newResource[core.Debt](core.DomainDebt, debtsPath, d)}
}

// Create saves a new debt. A debt without status starts PENDING.
func (s *DebtService) Create(ctx context.Context, debt core.Debt) (core.Debt, error) {
	if debt.Status == "" {
		debt.Status = core.DebtPending
	}
	return s.create(ctx, debt, func(saved core.Debt) {
		s.notes.DebtCreated(saved.Amount, saved.Creditor)
	})
}

// Update replaces debt id.
func (s *DebtService) Update(ctx context.Context, id int64, debt core.Debt) (core.Debt, error) {
	return s.update(ctx, id, debt, func(saved core.Debt) {
		s.notes.DebtUpdated(saved.Amount, saved.Creditor)
	})
}

// Delete removes debt id.
func (s *DebtService) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id, func(prev core.Debt, found bool) {
		if !found {
			s.notes.RecordDeleted(notify.CategoryDebt, id)
			return
		}
		s.notes.DebtDeleted(prev.Amount, prev.Creditor)
	})
}

type statusChange struct {
	Status core.DebtStatus `json:"status"`
	UserID int64           `json:"userId"`
}

// UpdateStatus moves debt id to status.
func (s *DebtService) UpdateStatus(ctx context.Context, id int64, status core.DebtStatus) (core.Debt, error) {
	if !status.Valid() {
		return core.Debt{}, s.fail(ctx, notify.ActionStatus, core.ErrInvalidStatus)
	}
	prev, _ := s.store.Get(id)
	return s.send(ctx, notify.ActionStatus, http.MethodPatch, s.recordPath(id, "status"),
		func(uid int64) any { return statusChange{Status: status, UserID: uid} },
		func(saved core.Debt) {
			creditor := saved.Creditor
			if creditor == "" {
				creditor = prev.Creditor
			}
			s.notes.DebtStatusChanged(creditor, status)
		})
}

// Summary totals the user's debts as currently stored on the backend.
func (s *DebtService) Summary(ctx context.Context) core.DebtSummary {
	debts := fetchOr[[]core.Debt](ctx, s.ids, s.api, s.logger, func(uid int64) string { return s.userPath(uid) }, nil)
	return core.SummarizeDebts(debts)
}
