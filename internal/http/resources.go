package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
	"finflow/internal/storage"
)

// resource describes how one domain's documents map onto stored records.
type resource struct {
	domain core.Domain
	base   string
	label  string

	// amountField is summed by the aggregates and must be positive.
	amountField string
	// dateField feeds period filters and monthly evolution; "" when the
	// domain has no date.
	dateField string
	// groups are the fields a breakdown may group by.
	groups []string
	// required string fields.
	required []string
	// defaults fill absent fields on create.
	defaults map[string]any
}

var resources = []resource{
	{
		domain:      core.DomainExpense,
		base:        "/api/expenses",
		label:       "Expense",
		amountField: "amount",
		dateField:   "date",
		groups:      []string{"category", "paymentMethod"},
		required:    []string{"category"},
	},
	{
		domain:      core.DomainIncome,
		base:        "/api/incomes",
		label:       "Income",
		amountField: "amount",
		dateField:   "date",
		groups:      []string{"source"},
		required:    []string{"source"},
	},
	{
		domain:      core.DomainDebt,
		base:        "/api/debts",
		label:       "Debt",
		amountField: "amount",
		dateField:   "dueDate",
		groups:      []string{"status", "creditor"},
		required:    []string{"creditor"},
		defaults:    map[string]any{"status": string(core.DebtPending), "amountPaid": "0"},
	},
	{
		domain:      core.DomainSaving,
		base:        "/api/saving-goals",
		label:       "Saving goal",
		amountField: "targetAmount",
		dateField:   "deadline",
		groups:      []string{"status"},
		required:    []string{"name"},
		defaults:    map[string]any{"status": string(core.SavingActive), "currentAmount": "0"},
	},
	{
		domain:      core.DomainBudget,
		base:        "/api/budgets",
		label:       "Budget",
		amountField: "limit",
		groups:      []string{"period"},
		required:    []string{"name"},
		defaults:    map[string]any{"period": string(core.PeriodMonthly), "spent": "0"},
	},
}

// sortField maps a client sort key onto a stored column.
func (res resource) sortField(name string) storage.SortField {
	switch name {
	case "amount", res.amountField:
		return storage.SortByAmount
	case "date", res.dateField:
		if res.dateField != "" {
			return storage.SortByDate
		}
	}
	return storage.SortByID
}

func (res resource) canGroupBy(field string) bool {
	for _, g := range res.groups {
		if g == field {
			return true
		}
	}
	return false
}

// validationError is a payload problem reported to the client as 400.
type validationError struct {
	field  string
	reason string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s %s", e.field, e.reason)
}

func invalid(field, reason string) error {
	return &validationError{field: field, reason: reason}
}

func isValidation(err error) bool {
	var ve *validationError
	return errors.As(err, &ve)
}

// record validates doc, applies defaults when creating and extracts the
// stored columns.
func (res resource) record(doc storage.Document, uid int64, creating bool) (storage.Record, error) {
	for k, v := range doc {
		if s, ok := v.(string); ok {
			doc[k] = sanitizeInput(s)
		}
	}
	if creating {
		for k, v := range res.defaults {
			if blankField(doc, k) {
				doc[k] = v
			}
		}
	}

	amount, err := decimal.NewFromString(doc.String(res.amountField))
	if err != nil {
		return storage.Record{}, invalid(res.amountField, "must be a number")
	}
	if !amount.IsPositive() {
		return storage.Record{}, invalid(res.amountField, "must be positive")
	}

	for _, f := range res.required {
		if strings.TrimSpace(doc.String(f)) == "" {
			return storage.Record{}, invalid(f, "is required")
		}
	}

	if s := doc.String("description"); len(s) > 200 {
		return storage.Record{}, invalid("description", "is too long (max 200 characters)")
	}

	if status := doc.String("status"); res.domain == core.DomainDebt && !core.DebtStatus(status).Valid() {
		return storage.Record{}, invalid("status", "is not a debt status")
	}

	var date string
	if res.dateField != "" {
		date, err = normalizeDate(doc.String(res.dateField))
		if err != nil {
			return storage.Record{}, invalid(res.dateField, "must be YYYY-MM-DD")
		}
		if date != "" {
			doc[res.dateField] = date
		}
	}

	return storage.Record{
		Domain: res.domain,
		UserID: uid,
		Amount: amount,
		Date:   date,
		Doc:    doc,
	}, nil
}

func blankField(doc storage.Document, k string) bool {
	v, ok := doc[k]
	return !ok || v == nil || v == ""
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func normalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(time.DateOnly), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", err
	}
	return t.Format(time.DateOnly), nil
}
