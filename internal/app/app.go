// Package app wires the process-wide singletons: identity, API client,
// per-domain facades, notification log, broadcasters and the optional relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finflow/internal/amqp"
	"finflow/internal/api"
	"finflow/internal/broadcast"
	"finflow/internal/cache"
	"finflow/internal/config"
	"finflow/internal/core"
	"finflow/internal/identity"
	applog "finflow/internal/log"
	"finflow/internal/notify"
	"finflow/internal/services"
)

// App is the composition root. Construct it once per process with New and
// release it with Close.
type App struct {
	Config        *config.Config
	Logger        *applog.Logger
	Identity      *identity.Provider
	API           api.Requester
	Hub           *broadcast.Hub
	Notifications *notify.Log
	Caches        *cache.Manager

	Expenses  *services.ExpenseService
	Incomes   *services.IncomeService
	Debts     *services.DebtService
	Savings   *services.SavingService
	Budgets   *services.BudgetService
	Dashboard *services.Dashboard

	invalidate map[core.Domain]func()

	mu     sync.Mutex
	relay  *amqp.Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes construction.
type Option func(*options)

type options struct {
	requester api.Requester
	scheduler notify.Scheduler
}

// WithRequester replaces the HTTP client, e.g. with a test double.
func WithRequester(r api.Requester) Option {
	return func(o *options) { o.requester = r }
}

// WithScheduler replaces the notification auto-dismiss timer.
func WithScheduler(s notify.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// New builds every singleton. Nothing is started and no network is used
// until Start.
func New(cfg *config.Config, logger *applog.Logger, opts ...Option) *App {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ids := identity.NewProvider()
	requester := o.requester
	if requester == nil {
		requester = api.NewClient(cfg.APIURL, cfg.APITimeout, ids,
			api.WithLogger(logger.WithComponent(applog.ComponentAPI).Slog()))
	}

	notifyOpts := []notify.Option{
		notify.WithMaxEntries(cfg.NotifyMax),
		notify.WithDismissAfter(cfg.NotifyDismiss),
	}
	if o.scheduler != nil {
		notifyOpts = append(notifyOpts, notify.WithScheduler(o.scheduler))
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		Identity:      ids,
		API:           requester,
		Hub:           broadcast.NewHub(logger.WithComponent(applog.ComponentBroadcast).Slog()),
		Notifications: notify.New(notifyOpts...),
		Caches:        cache.NewManager(),
	}

	deps := services.Deps{
		API:      requester,
		Identity: ids,
		Notify:   a.Notifications,
		Hub:      a.Hub,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger.WithComponent(applog.ComponentService).Slog(),
	}
	a.Expenses = services.NewExpenseService(deps)
	a.Incomes = services.NewIncomeService(deps)
	a.Debts = services.NewDebtService(deps)
	a.Savings = services.NewSavingService(deps)
	a.Budgets = services.NewBudgetService(deps)
	a.Dashboard = services.NewDashboard(a.Expenses, a.Incomes, a.Debts, a.Savings, a.Budgets,
		a.Hub, cfg.RefreshDebounce, logger.Slog())

	a.invalidate = map[core.Domain]func(){
		core.DomainExpense: a.Expenses.Invalidate,
		core.DomainIncome:  a.Incomes.Invalidate,
		core.DomainDebt:    a.Debts.Invalidate,
		core.DomainSaving:  a.Savings.Invalidate,
		core.DomainBudget:  a.Budgets.Invalidate,
	}

	for _, rs := range [][]cache.Resetter{
		a.Expenses.Resetters(),
		a.Incomes.Resetters(),
		a.Debts.Resetters(),
		a.Savings.Resetters(),
		a.Budgets.Resetters(),
	} {
		for _, r := range rs {
			a.Caches.Register(r)
		}
	}
	a.Caches.WatchIdentity(ids)
	return a
}

// Start signs in with the configured token, connects the relay when
// configured and starts the dashboard refresh loop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("app already started")
	}

	if a.Config.Token != "" {
		if err := a.Identity.Login(a.Config.Token); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Config.AMQPURL != "" {
		relay, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, amqp.WithUserID(a.Identity.CurrentUserID))
		if err != nil {
			cancel()
			a.cancel = nil
			return fmt.Errorf("connect relay: %w", err)
		}
		a.relay = relay
		a.Hub.SetRelay(relay)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := relay.Consume(ctx, a.deliverRemote); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("Update relay stopped", applog.FieldError, err)
			}
		}()
		a.Logger.Info("Update relay connected", applog.FieldOrigin, relay.Origin())
	}

	a.Dashboard.Watch(ctx)
	return nil
}

// deliverRemote applies a signal from another process: cached pages of the
// domain are dropped and local subscribers are told. Signals about other
// users are ignored.
func (a *App) deliverRemote(msg *amqp.UpdateMessage) {
	if uid, ok := a.Identity.CurrentUserID(); msg.UserID != 0 && (!ok || uid != msg.UserID) {
		return
	}
	if inv, ok := a.invalidate[msg.Domain]; ok {
		inv()
	}
	a.Hub.Deliver(msg.Domain)
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Dashboard.Stop()
	a.Caches.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.relay != nil {
		a.Hub.SetRelay(nil)
		err := a.relay.Close()
		a.relay = nil
		if err != nil {
			return fmt.Errorf("close relay: %w", err)
		}
	}
	return nil
}
