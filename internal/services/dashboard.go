package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finflow/internal/broadcast"
	"finflow/internal/core"
	applog "finflow/internal/log"
	"finflow/internal/stream"
)

const topSpendCategories = 5

// Dashboard is the cross-domain summary. It reloads itself, debounced, when
// any domain signals a change.
type Dashboard struct {
	expenses *ExpenseService
	incomes  *IncomeService
	debts    *DebtService
	savings  *SavingService
	budgets  *BudgetService

	hub     *broadcast.Hub
	delay   time.Duration
	now     func() time.Time
	logger  *slog.Logger
	summary *stream.BehaviorSubject[core.DashboardSummary]

	mu       sync.Mutex
	debounce *broadcast.Debouncer
	unsub    func()
}

// NewDashboard builds a dashboard over the given facades.
func NewDashboard(e *ExpenseService, i *IncomeService, d *DebtService, s *SavingService, b *BudgetService,
	hub *broadcast.Hub, delay time.Duration, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		expenses: e,
		incomes:  i,
		debts:    d,
		savings:  s,
		budgets:  b,
		hub:      hub,
		delay:    delay,
		now:      time.Now,
		logger:   logger.With(applog.FieldComponent, applog.ComponentDashboard),
		summary:  stream.NewBehaviorSubject(core.DashboardSummary{}),
	}
}

// Load fetches every card concurrently for the current month and publishes
// the result. Individual cards degrade to zero values; only cancellation of
// ctx is returned as an error.
func (d *Dashboard) Load(ctx context.Context) (core.DashboardSummary, error) {
	start, end := monthBounds(d.now())

	var out core.DashboardSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Income = d.incomes.TotalForPeriod(gctx, start, end)
		return gctx.Err()
	})
	g.Go(func() error {
		out.Expenses = d.expenses.TotalForPeriod(gctx, start, end)
		return gctx.Err()
	})
	g.Go(func() error {
		out.TopSpends = topN(d.expenses.ByCategory(gctx), topSpendCategories)
		return gctx.Err()
	})
	g.Go(func() error {
		out.Debts = d.debts.Summary(gctx)
		return gctx.Err()
	})
	g.Go(func() error {
		out.Savings = d.savings.Summary(gctx)
		return gctx.Err()
	})
	g.Go(func() error {
		out.Budgets = d.budgets.Summary(gctx)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return core.DashboardSummary{}, err
	}
	out.Balance = out.Income.Sub(out.Expenses)

	d.summary.Next(out)
	return out, nil
}

// Watch reloads the dashboard, debounced, whenever any domain broadcaster
// fires. Reloads use ctx; Stop ends watching.
func (d *Dashboard) Watch(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsub != nil {
		return
	}
	d.debounce = broadcast.Debounce(d.delay, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.Load(ctx); err != nil {
			d.logger.WarnContext(ctx, "Dashboard refresh aborted", applog.FieldError, err)
		}
	})
	trigger := d.debounce.Trigger
	d.unsub = d.hub.OnAny(func(dom core.Domain) {
		d.logger.Debug("Dashboard refresh scheduled", applog.FieldDomain, string(dom))
		trigger()
	})
}

// Stop ends watching. Safe to call more than once.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsub != nil {
		d.unsub()
		d.unsub = nil
	}
	if d.debounce != nil {
		d.debounce.Stop()
		d.debounce = nil
	}
}

// Current returns the last published summary.
func (d *Dashboard) Current() core.DashboardSummary {
	return d.summary.Value()
}

// OnSummary subscribes fn to published summaries, starting with the current
// one.
func (d *Dashboard) OnSummary(fn func(core.DashboardSummary)) (unsubscribe func()) {
	return d.summary.Subscribe(fn)
}

func monthBounds(now time.Time) (core.Date, core.Date) {
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return first, last
}

func topN(totals []core.CategoryTotal, n int) []core.CategoryTotal {
	out := append([]core.CategoryTotal(nil), totals...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
