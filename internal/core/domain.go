package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Domain names a family of records with its own store, cache and update
// channel.
type Domain string

const (
	DomainExpense Domain = "expense"
	DomainIncome  Domain = "income"
	DomainDebt    Domain = "debt"
	DomainSaving  Domain = "saving"
	DomainBudget  Domain = "budget"
)

// Domains lists every mutable domain.
func Domains() []Domain {
	return []Domain{DomainExpense, DomainIncome, DomainDebt, DomainSaving, DomainBudget}
}

type (
	DebtStatus   string
	SavingStatus string
	BudgetPeriod string
)

const (
	DebtPending       DebtStatus = "PENDING"
	DebtPartiallyPaid DebtStatus = "PARTIALLY_PAID"
	DebtPaid          DebtStatus = "PAID"
	DebtOverdue       DebtStatus = "OVERDUE"

	SavingActive    SavingStatus = "ACTIVE"
	SavingCompleted SavingStatus = "COMPLETED"
	SavingCancelled SavingStatus = "CANCELLED"

	PeriodWeekly  BudgetPeriod = "WEEKLY"
	PeriodMonthly BudgetPeriod = "MONTHLY"
	PeriodYearly  BudgetPeriod = "YEARLY"
)

// Valid reports whether s is a known debt status.
func (s DebtStatus) Valid() bool {
	switch s {
	case DebtPending, DebtPartiallyPaid, DebtPaid, DebtOverdue:
		return true
	}
	return false
}

type (
	Expense struct {
		ID            int64           `json:"id,omitempty"`
		UserID        int64           `json:"userId"`
		Amount        decimal.Decimal `json:"amount"`
		Category      string          `json:"category"`
		PaymentMethod string          `json:"paymentMethod,omitempty"`
		Description   string          `json:"description,omitempty"`
		Date          Date            `json:"date"`
	}

	Income struct {
		ID          int64           `json:"id,omitempty"`
		UserID      int64           `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Source      string          `json:"source"`
		Description string          `json:"description,omitempty"`
		Date        Date            `json:"date"`
		Recurring   bool            `json:"recurring,omitempty"`
	}

	Debt struct {
		ID          int64           `json:"id,omitempty"`
		UserID      int64           `json:"userId"`
		Creditor    string          `json:"creditor"`
		Description string          `json:"description,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		AmountPaid  decimal.Decimal `json:"amountPaid"`
		DueDate     Date            `json:"dueDate"`
		Status      DebtStatus      `json:"status"`
	}

	SavingGoal struct {
		ID            int64           `json:"id,omitempty"`
		UserID        int64           `json:"userId"`
		Name          string          `json:"name"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		Deadline      Date            `json:"deadline"`
		Status        SavingStatus    `json:"status"`
	}

	BudgetCategory struct {
		ID     int64           `json:"id,omitempty"`
		UserID int64           `json:"userId"`
		Name   string          `json:"name"`
		Limit  decimal.Decimal `json:"limit"`
		Spent  decimal.Decimal `json:"spent"`
		Period BudgetPeriod    `json:"period"`
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyCategory  = errors.New("empty category")
	ErrEmptySource    = errors.New("empty income source")
	ErrEmptyCreditor  = errors.New("empty creditor")
	ErrEmptyName      = errors.New("empty name")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrDescTooLong    = errors.New("description too long (max 200 characters)")
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

func positive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func (e Expense) RecordID() int64 { return e.ID }

// ForUser returns a copy of e owned by uid.
func (e Expense) ForUser(uid int64) Expense {
	e.UserID = uid
	return e
}

func (e Expense) Validate() error {
	if err := positive(e.Amount); err != nil {
		return err
	}
	if blank(e.Category) {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return ErrDescTooLong
	}
	return nil
}

func (i Income) RecordID() int64 { return i.ID }

func (i Income) ForUser(uid int64) Income {
	i.UserID = uid
	return i
}

func (i Income) Validate() error {
	if err := positive(i.Amount); err != nil {
		return err
	}
	if blank(i.Source) {
		return ErrEmptySource
	}
	if len(i.Description) > 200 {
		return ErrDescTooLong
	}
	return nil
}

func (d Debt) RecordID() int64 { return d.ID }

func (d Debt) ForUser(uid int64) Debt {
	d.UserID = uid
	return d
}

// Remaining is the amount still owed, never negative.
func (d Debt) Remaining() decimal.Decimal {
	r := d.Amount.Sub(d.AmountPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (d Debt) Validate() error {
	if err := positive(d.Amount); err != nil {
		return err
	}
	if d.AmountPaid.IsNegative() {
		return ErrNegativeAmount
	}
	if blank(d.Creditor) {
		return ErrEmptyCreditor
	}
	if d.Status != "" && !d.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (g SavingGoal) RecordID() int64 { return g.ID }

func (g SavingGoal) ForUser(uid int64) SavingGoal {
	g.UserID = uid
	return g
}

// Progress returns the saved share of the target in percent, capped at 100.
func (g SavingGoal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	p := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2)
	if p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return p
}

func (g SavingGoal) Validate() error {
	if blank(g.Name) {
		return ErrEmptyName
	}
	if err := positive(g.TargetAmount); err != nil {
		return err
	}
	if g.CurrentAmount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (b BudgetCategory) RecordID() int64 { return b.ID }

func (b BudgetCategory) ForUser(uid int64) BudgetCategory {
	b.UserID = uid
	return b
}

// Remaining is limit minus spent; negative when over budget.
func (b BudgetCategory) Remaining() decimal.Decimal {
	return b.Limit.Sub(b.Spent)
}

// Exceeded reports whether spending is above the limit.
func (b BudgetCategory) Exceeded() bool {
	return b.Spent.GreaterThan(b.Limit)
}

func (b BudgetCategory) Validate() error {
	if blank(b.Name) {
		return ErrEmptyName
	}
	if err := positive(b.Limit); err != nil {
		return err
	}
	if b.Spent.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON accepts YYYY-MM-DD, RFC 3339 timestamps and null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*d = NewDate(t.Year(), int(t.Month()), t.Day())
	return nil
}
