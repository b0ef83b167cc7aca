package services

import (
	"context"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
	"finflow/internal/notify"
)

const incomesPath = "/api/incomes"

// IncomeService is the income facade.
type IncomeService struct {
	*resource[core.Income]
}

// NewIncomeService creates the income facade over d.
func NewIncomeService(d Deps) *IncomeService {
	return &IncomeService{newResource[core.Income](core.DomainIncome, incomesPath, d)}
}

// Create saves a new income for the signed-in user.
func (s *IncomeService) Create(ctx context.Context, in core.Income) (core.Income, error) {
	return s.create(ctx, in, func(saved core.Income) {
		s.notes.IncomeCreated(saved.Amount, saved.Source)
	})
}

// Update replaces income id.
func (s *IncomeService) Update(ctx context.Context, id int64, in core.Income) (core.Income, error) {
	return s.update(ctx, id, in, func(saved core.Income) {
		s.notes.IncomeUpdated(saved.Amount, saved.Source)
	})
}

// Delete removes income id.
func (s *IncomeService) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id, func(prev core.Income, found bool) {
		if !found {
			s.notes.RecordDeleted(notify.CategoryIncome, id)
			return
		}
		s.notes.IncomeDeleted(prev.Amount, prev.Source)
	})
}

// TotalForPeriod sums incomes dated within [start, end].
func (s *IncomeService) TotalForPeriod(ctx context.Context, start, end core.Date) decimal.Decimal {
	return s.total(ctx, start, end)
}

// BySource totals incomes per source, largest first.
func (s *IncomeService) BySource(ctx context.Context) []core.CategoryTotal {
	return s.breakdown(ctx, "source")
}

// Top returns the n largest incomes.
func (s *IncomeService) Top(ctx context.Context, n int) []core.Income {
	return s.top(ctx, n)
}

// MonthlyEvolution returns twelve monthly totals for year.
func (s *IncomeService) MonthlyEvolution(ctx context.Context, year int) []core.MonthTotal {
	return s.monthly(ctx, year)
}
