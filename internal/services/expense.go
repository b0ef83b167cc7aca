package services

import (
	"context"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
	"finflow/internal/notify"
)

const expensesPath = "/api/expenses"

// ExpenseService is the expense facade.
type ExpenseService struct {
	*resource[core.Expense]
}

// NewExpenseService creates the expense facade over d.
func NewExpenseService(d Deps) *ExpenseService {
	return &ExpenseService{newResource[core.Expense](core.DomainExpense, expensesPath, d)}
}

// Create saves a new expense for the signed-in user.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	return s.create(ctx, e, func(saved core.Expense) {
		s.notes.ExpenseCreated(saved.Amount, saved.Category)
	})
}

// Update replaces expense id.
func (s *ExpenseService) Update(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	return s.update(ctx, id, e, func(saved core.Expense) {
		s.notes.ExpenseUpdated(saved.Amount, saved.Category)
	})
}

// Delete removes expense id, retrying the per-user endpoint once on 404 or
// 403.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id, func(prev core.Expense, found bool) {
		if !found {
			s.notes.RecordDeleted(notify.CategoryExpense, id)
			return
		}
		s.notes.ExpenseDeleted(prev.Amount, prev.Category)
	})
}

// TotalForPeriod sums expenses dated within [start, end]. Zero dates leave
// the bound open.
func (s *ExpenseService) TotalForPeriod(ctx context.Context, start, end core.Date) decimal.Decimal {
	return s.total(ctx, start, end)
}

// ByCategory totals expenses per category, largest first.
func (s *ExpenseService) ByCategory(ctx context.Context) []core.CategoryTotal {
	return s.breakdown(ctx, "category")
}

// ByPaymentMethod totals expenses per payment method.
func (s *ExpenseService) ByPaymentMethod(ctx context.Context) []core.CategoryTotal {
	return s.breakdown(ctx, "paymentMethod")
}

// Top returns the n largest expenses.
func (s *ExpenseService) Top(ctx context.Context, n int) []core.Expense {
	return s.top(ctx, n)
}

// MonthlyEvolution returns the per-month totals of year.
func (s *ExpenseService) MonthlyEvolution(ctx context.Context, year int) []core.MonthTotal {
	return s.monthly(ctx, year)
}
