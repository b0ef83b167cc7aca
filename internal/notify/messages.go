package notify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
)

// Actions recorded on domain notifications.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionContribute = "contribute"
	ActionWithdraw   = "withdraw"
	ActionStatus     = "status_change"
	ActionExceeded   = "exceeded"
)

// AutoDismisses reports whether convenience notifications of cat remove
// themselves after the dismiss delay. Budget and general notifications stay
// until the user dismisses them.
func AutoDismisses(cat Category) bool {
	switch cat {
	case CategoryIncome, CategoryExpense, CategorySaving, CategoryDebt, CategoryInvestment:
		return true
	}
	return false
}

// CategoryFor maps a domain to its notification category.
func CategoryFor(d core.Domain) Category {
	switch d {
	case core.DomainExpense:
		return CategoryExpense
	case core.DomainIncome:
		return CategoryIncome
	case core.DomainDebt:
		return CategoryDebt
	case core.DomainSaving:
		return CategorySaving
	case core.DomainBudget:
		return CategoryBudget
	}
	return CategoryGeneral
}

func (l *Log) record(cat Category, typ Type, action, title, msg string, data any) string {
	id := l.Add(Draft{
		Type:     typ,
		Title:    title,
		Message:  msg,
		Category: cat,
		Action:   action,
		Data:     data,
	})
	if AutoDismisses(cat) {
		l.scheduleRemoval(id)
	}
	return id
}

func money(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

// Income

// IncomeCreated records a new income of amount from source.
func (l *Log) IncomeCreated(amount decimal.Decimal, source string) string {
	return l.record(CategoryIncome, TypeSuccess, ActionCreate, "Income added",
		fmt.Sprintf("Income of %s from %s has been recorded", money(amount), source), nil)
}

// IncomeUpdated records a changed income.
func (l *Log) IncomeUpdated(amount decimal.Decimal, source string) string {
	return l.record(CategoryIncome, TypeSuccess, ActionUpdate, "Income updated",
		fmt.Sprintf("Income from %s updated to %s", source, money(amount)), nil)
}

// IncomeDeleted records a removed income.
func (l *Log) IncomeDeleted(amount decimal.Decimal, source string) string {
	return l.record(CategoryIncome, TypeSuccess, ActionDelete, "Income deleted",
		fmt.Sprintf("Income of %s from %s has been deleted", money(amount), source), nil)
}

// Expense

// ExpenseCreated records a new expense of amount in category.
func (l *Log) ExpenseCreated(amount decimal.Decimal, category string) string {
	return l.record(CategoryExpense, TypeSuccess, ActionCreate, "Expense added",
		fmt.Sprintf("Expense of %s in %s has been recorded", money(amount), category), nil)
}

// ExpenseUpdated records a changed expense.
func (l *Log) ExpenseUpdated(amount decimal.Decimal, category string) string {
	return l.record(CategoryExpense, TypeSuccess, ActionUpdate, "Expense updated",
		fmt.Sprintf("Expense in %s updated to %s", category, money(amount)), nil)
}

// ExpenseDeleted records a removed expense.
func (l *Log) ExpenseDeleted(amount decimal.Decimal, category string) string {
	return l.record(CategoryExpense, TypeSuccess, ActionDelete, "Expense deleted",
		fmt.Sprintf("Expense of %s in %s has been deleted", money(amount), category), nil)
}

// Debt

// DebtCreated records a new debt of amount owed to creditor.
func (l *Log) DebtCreated(amount decimal.Decimal, creditor string) string {
	return l.record(CategoryDebt, TypeSuccess, ActionCreate, "Debt added",
		fmt.Sprintf("Debt of %s to %s has been recorded", money(amount), creditor), nil)
}

// DebtUpdated records a changed debt.
func (l *Log) DebtUpdated(amount decimal.Decimal, creditor string) string {
	return l.record(CategoryDebt, TypeSuccess, ActionUpdate, "Debt updated",
		fmt.Sprintf("Debt to %s updated to %s", creditor, money(amount)), nil)
}

// DebtStatusChanged records a debt moving to status.
func (l *Log) DebtStatusChanged(creditor string, status core.DebtStatus) string {
	return l.record(CategoryDebt, TypeSuccess, ActionStatus, "Debt status changed",
		fmt.Sprintf("Debt to %s is now %s", creditor, status), nil)
}

// DebtDeleted records a removed debt.
func (l *Log) DebtDeleted(amount decimal.Decimal, creditor string) string {
	return l.record(CategoryDebt, TypeSuccess, ActionDelete, "Debt deleted",
		fmt.Sprintf("Debt of %s to %s has been deleted", money(amount), creditor), nil)
}

// Saving

// SavingGoalCreated records a new saving goal with its target.
func (l *Log) SavingGoalCreated(name string, target decimal.Decimal) string {
	return l.record(CategorySaving, TypeSuccess, ActionCreate, "Saving goal created",
		fmt.Sprintf("Saving goal %s with target %s has been created", name, money(target)), nil)
}

// SavingGoalUpdated records a changed saving goal.
func (l *Log) SavingGoalUpdated(name string, target decimal.Decimal) string {
	return l.record(CategorySaving, TypeSuccess, ActionUpdate, "Saving goal updated",
		fmt.Sprintf("Saving goal %s updated, target %s", name, money(target)), nil)
}

// SavingContribution records amount added to the goal name.
func (l *Log) SavingContribution(amount decimal.Decimal, name string) string {
	return l.record(CategorySaving, TypeSuccess, ActionContribute, "Contribution added",
		fmt.Sprintf("%s added to saving goal %s", money(amount), name), nil)
}

// SavingWithdrawal records amount taken out of the goal name.
func (l *Log) SavingWithdrawal(amount decimal.Decimal, name string) string {
	return l.record(CategorySaving, TypeSuccess, ActionWithdraw, "Withdrawal made",
		fmt.Sprintf("%s withdrawn from saving goal %s", money(amount), name), nil)
}

// SavingGoalDeleted records a removed saving goal.
func (l *Log) SavingGoalDeleted(name string) string {
	return l.record(CategorySaving, TypeSuccess, ActionDelete, "Saving goal deleted",
		fmt.Sprintf("Saving goal %s has been deleted", name), nil)
}

// Budget. These never auto-dismiss.

// BudgetCreated records a new budget with its limit.
func (l *Log) BudgetCreated(name string, limit decimal.Decimal) string {
	return l.record(CategoryBudget, TypeSuccess, ActionCreate, "Budget created",
		fmt.Sprintf("Budget %s with limit %s has been created", name, money(limit)), nil)
}

// BudgetUpdated records a changed budget.
func (l *Log) BudgetUpdated(name string, limit decimal.Decimal) string {
	return l.record(CategoryBudget, TypeSuccess, ActionUpdate, "Budget updated",
		fmt.Sprintf("Budget %s updated, limit %s", name, money(limit)), nil)
}

// BudgetDeleted records a removed budget.
func (l *Log) BudgetDeleted(name string) string {
	return l.record(CategoryBudget, TypeSuccess, ActionDelete, "Budget deleted",
		fmt.Sprintf("Budget %s has been deleted", name), nil)
}

// BudgetExceeded warns that spent went over limit for the budget name.
func (l *Log) BudgetExceeded(name string, spent, limit decimal.Decimal) string {
	return l.record(CategoryBudget, TypeWarning, ActionExceeded, "Budget exceeded",
		fmt.Sprintf("Budget %s exceeded: spent %s of %s", name, money(spent), money(limit)), nil)
}

// Investment

// InvestmentRecorded records an investment of amount in name. Investments
// have no facade of their own; the entry auto-dismisses like income and
// expense entries.
func (l *Log) InvestmentRecorded(amount decimal.Decimal, name string) string {
	return l.record(CategoryInvestment, TypeSuccess, ActionCreate, "Investment recorded",
		fmt.Sprintf("Investment of %s in %s has been recorded", money(amount), name), nil)
}

// OperationFailed records the failure of action in cat with a human readable
// reason.
func (l *Log) OperationFailed(cat Category, action, reason string) string {
	return l.record(cat, TypeError, action, "Operation failed",
		fmt.Sprintf("Could not %s %s: %s", action, cat, reason), map[string]string{"reason": reason})
}

// RecordDeleted is used when a deleted record was not loaded locally, so
// only its id is known.
func (l *Log) RecordDeleted(cat Category, id int64) string {
	return l.record(cat, TypeSuccess, ActionDelete, "Record deleted",
		fmt.Sprintf("%s #%d has been deleted", cat, id), nil)
}
