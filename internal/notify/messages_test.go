package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow/internal/core"
)

func TestMessages_Templates(t *testing.T) {
	l, _ := newTestLog()
	d := decimal.RequireFromString

	tests := []struct {
		name     string
		add      func() string
		category Category
		typ      Type
		action   string
		contains []string
	}{
		{"expense created", func() string { return l.ExpenseCreated(d("42.5"), "GROCERIES") }, CategoryExpense, TypeSuccess, ActionCreate, []string{"42.50", "GROCERIES"}},
		{"income deleted", func() string { return l.IncomeDeleted(d("1500"), "SALARY") }, CategoryIncome, TypeSuccess, ActionDelete, []string{"1500.00", "SALARY"}},
		{"debt status", func() string { return l.DebtStatusChanged("Bank", core.DebtPaid) }, CategoryDebt, TypeSuccess, ActionStatus, []string{"Bank", "PAID"}},
		{"saving withdrawal", func() string { return l.SavingWithdrawal(d("20"), "Car") }, CategorySaving, TypeSuccess, ActionWithdraw, []string{"20.00", "Car"}},
		{"budget exceeded", func() string { return l.BudgetExceeded("Food", d("310"), d("300")) }, CategoryBudget, TypeWarning, ActionExceeded, []string{"310.00", "300.00"}},
		{"investment", func() string { return l.InvestmentRecorded(d("99.9"), "ETF") }, CategoryInvestment, TypeSuccess, ActionCreate, []string{"99.90", "ETF"}},
		{"failure", func() string { return l.OperationFailed(CategoryExpense, ActionDelete, "not allowed") }, CategoryExpense, TypeError, ActionDelete, []string{"delete", "not allowed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := l.Get(tt.add())
			require.True(t, ok)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.typ, e.Type)
			assert.Equal(t, tt.action, e.Action)
			for _, s := range tt.contains {
				assert.Contains(t, e.Message, s)
			}
		})
	}
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, CategoryExpense, CategoryFor(core.DomainExpense))
	assert.Equal(t, CategoryBudget, CategoryFor(core.DomainBudget))
	assert.Equal(t, CategoryGeneral, CategoryFor(core.Domain("x")))
}
