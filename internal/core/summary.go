package core

import "github.com/shopspring/decimal"

// CategoryTotal is an amount aggregated by a grouping key (category,
// payment method, income source).
type CategoryTotal struct {
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
}

// MonthTotal is the total of one month of a year.
type MonthTotal struct {
	Month int             `json:"month"` // 1-12
	Total decimal.Decimal `json:"total"`
}

// DebtSummary aggregates a user's debts.
type DebtSummary struct {
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalPaid   decimal.Decimal `json:"totalPaid"`
	Remaining   decimal.Decimal `json:"remaining"`
	Overdue     int             `json:"overdue"`
	Count       int             `json:"count"`
}

// SavingSummary aggregates a user's saving goals.
type SavingSummary struct {
	TotalTarget decimal.Decimal `json:"totalTarget"`
	TotalSaved  decimal.Decimal `json:"totalSaved"`
	Active      int             `json:"active"`
	Completed   int             `json:"completed"`
}

// BudgetSummary aggregates a user's budget categories.
type BudgetSummary struct {
	TotalLimit decimal.Decimal `json:"totalLimit"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Exceeded   int             `json:"exceeded"`
}

// DashboardSummary is the cross-domain overview shown on the dashboard.
type DashboardSummary struct {
	Income    decimal.Decimal
	Expenses  decimal.Decimal
	Balance   decimal.Decimal
	Debts     DebtSummary
	Savings   SavingSummary
	Budgets   BudgetSummary
	TopSpends []CategoryTotal
}

// SummarizeDebts totals ds.
func SummarizeDebts(ds []Debt) DebtSummary {
	s := DebtSummary{TotalAmount: decimal.Zero, TotalPaid: decimal.Zero, Remaining: decimal.Zero}
	for _, d := range ds {
		s.TotalAmount = s.TotalAmount.Add(d.Amount)
		s.TotalPaid = s.TotalPaid.Add(d.AmountPaid)
		s.Remaining = s.Remaining.Add(d.Remaining())
		if d.Status == DebtOverdue {
			s.Overdue++
		}
		s.Count++
	}
	return s
}

// SummarizeSavings totals gs. Cancelled goals are left out of the amounts.
func SummarizeSavings(gs []SavingGoal) SavingSummary {
	s := SavingSummary{TotalTarget: decimal.Zero, TotalSaved: decimal.Zero}
	for _, g := range gs {
		switch g.Status {
		case SavingCancelled:
			continue
		case SavingCompleted:
			s.Completed++
		default:
			s.Active++
		}
		s.TotalTarget = s.TotalTarget.Add(g.TargetAmount)
		s.TotalSaved = s.TotalSaved.Add(g.CurrentAmount)
	}
	return s
}

// SummarizeBudgets totals bs.
func SummarizeBudgets(bs []BudgetCategory) BudgetSummary {
	s := BudgetSummary{TotalLimit: decimal.Zero, TotalSpent: decimal.Zero}
	for _, b := range bs {
		s.TotalLimit = s.TotalLimit.Add(b.Limit)
		s.TotalSpent = s.TotalSpent.Add(b.Spent)
		if b.Exceeded() {
			s.Exceeded++
		}
	}
	s.Remaining = s.TotalLimit.Sub(s.TotalSpent)
	return s
}
