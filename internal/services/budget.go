package services

import (
	"context"

	"finflow/internal/core"
	"finflow/internal/notify"
)

const budgetsPath = "/api/budgets"

// BudgetService is the budget facade. Its notifications stay in the log
// until dismissed.
type BudgetService struct {
	*resource[core.BudgetCategory]
}

// NewBudgetService creates the budget facade over d.
func NewBudgetService(d Deps) *BudgetService {
	return &BudgetService{newResource[core.BudgetCategory](core.DomainBudget, budgetsPath, d)}
}

// Create saves a new budget. The period defaults to MONTHLY.
func (s *BudgetService) Create(ctx context.Context, b core.BudgetCategory) (core.BudgetCategory, error) {
	if b.Period == "" {
		b.Period = core.PeriodMonthly
	}
	return s.create(ctx, b, func(saved core.BudgetCategory) {
		s.notes.BudgetCreated(saved.Name, saved.Limit)
	})
}

// Update replaces budget id.
func (s *BudgetService) Update(ctx context.Context, id int64, b core.BudgetCategory) (core.BudgetCategory, error) {
	return s.update(ctx, id, b, func(saved core.BudgetCategory) {
		s.notes.BudgetUpdated(saved.Name, saved.Limit)
	})
}

// Delete removes budget id.
func (s *BudgetService) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id, func(prev core.BudgetCategory, found bool) {
		if !found {
			s.notes.RecordDeleted(notify.CategoryBudget, id)
			return
		}
		s.notes.BudgetDeleted(prev.Name)
	})
}

// Summary totals the user's budgets as stored on the backend.
func (s *BudgetService) Summary(ctx context.Context) core.BudgetSummary {
	budgets := fetchOr[[]core.BudgetCategory](ctx, s.ids, s.api, s.logger, func(uid int64) string { return s.userPath(uid) }, nil)
	return core.SummarizeBudgets(budgets)
}

// ReportExceeded adds a warning for every loaded budget whose spending is
// over its limit and returns how many were reported.
func (s *BudgetService) ReportExceeded() int {
	n := 0
	for _, b := range s.Snapshot() {
		if b.Exceeded() {
			s.notes.BudgetExceeded(b.Name, b.Spent, b.Limit)
			n++
		}
	}
	return n
}
