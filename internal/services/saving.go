package services

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
	"finflow/internal/notify"
)

const savingGoalsPath = "/api/saving-goals"

// SavingService is the saving goal facade.
type SavingService struct {
	*resource[core.SavingGoal]
}

// NewSavingService creates the saving goal facade over d.
func NewSavingService(d Deps) *SavingService {
	return &SavingService{newResource[core.SavingGoal](core.DomainSaving, savingGoalsPath, d)}
}

// Create saves a new goal. A goal without status starts ACTIVE.
func (s *SavingService) Create(ctx context.Context, g core.SavingGoal) (core.SavingGoal, error) {
	if g.Status == "" {
		g.Status = core.SavingActive
	}
	return s.create(ctx, g, func(saved core.SavingGoal) {
		s.notes.SavingGoalCreated(saved.Name, saved.TargetAmount)
	})
}

// Update replaces goal id.
func (s *SavingService) Update(ctx context.Context, id int64, g core.SavingGoal) (core.SavingGoal, error) {
	return s.update(ctx, id, g, func(saved core.SavingGoal) {
		s.notes.SavingGoalUpdated(saved.Name, saved.TargetAmount)
	})
}

// Delete removes goal id.
func (s *SavingService) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id, func(prev core.SavingGoal, found bool) {
		if !found {
			s.notes.RecordDeleted(notify.CategorySaving, id)
			return
		}
		s.notes.SavingGoalDeleted(prev.Name)
	})
}

type movement struct {
	Amount decimal.Decimal `json:"amount"`
	UserID int64           `json:"userId"`
}

// Contribute adds amount to goal id.
func (s *SavingService) Contribute(ctx context.Context, id int64, amount decimal.Decimal) (core.SavingGoal, error) {
	return s.move(ctx, id, amount, notify.ActionContribute, "contribute", s.notes.SavingContribution)
}

// Withdraw takes amount out of goal id.
func (s *SavingService) Withdraw(ctx context.Context, id int64, amount decimal.Decimal) (core.SavingGoal, error) {
	return s.move(ctx, id, amount, notify.ActionWithdraw, "withdraw", s.notes.SavingWithdrawal)
}

func (s *SavingService) move(ctx context.Context, id int64, amount decimal.Decimal, action, endpoint string,
	note func(decimal.Decimal, string) string) (core.SavingGoal, error) {
	if !amount.IsPositive() {
		return core.SavingGoal{}, s.fail(ctx, action, core.ErrInvalidAmount)
	}
	prev, _ := s.store.Get(id)
	return s.send(ctx, action, http.MethodPost, s.recordPath(id, endpoint),
		func(uid int64) any { return movement{Amount: amount, UserID: uid} },
		func(saved core.SavingGoal) {
			name := saved.Name
			if name == "" {
				name = prev.Name
			}
			note(amount, name)
		})
}

// Summary totals the user's saving goals as stored on the backend.
func (s *SavingService) Summary(ctx context.Context) core.SavingSummary {
	goals := fetchOr[[]core.SavingGoal](ctx, s.ids, s.api, s.logger, func(uid int64) string { return s.userPath(uid) }, nil)
	return core.SummarizeSavings(goals)
}
