// Command finflow runs the client cache headless: it signs in with the
// configured token, loads every domain, logs the dashboard and keeps it
// fresh until interrupted.
package main

import (
	"context"
	"os"
	"time"

	"finflow/internal/app"
	"finflow/internal/cli"
	"finflow/internal/core"
	applog "finflow/internal/log"
	"finflow/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	a := app.New(cfg, logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := a.Close(); err != nil {
			logger.Error("Shutdown error", applog.FieldError, err)
		}
	})

	if err := a.Start(ctx); err != nil {
		logger.Error("Failed to start", applog.FieldError, err)
		os.Exit(1)
	}

	uid, ok := a.Identity.CurrentUserID()
	if !ok {
		logger.Warn("No FINFLOW_TOKEN configured, waiting signed out")
		cli.WaitForShutdown(ctx, done)
		return
	}
	logger.Info("Signed in", applog.FieldUserID, uid, "api", cfg.APIURL)

	seen := make(map[string]bool)
	a.Notifications.OnNotifications(func(entries []notify.Entry) {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			logger.Info(e.Title,
				applog.FieldNotificationID, e.ID,
				"type", e.Type,
				"category", e.Category,
				"message", e.Message)
		}
	})

	a.Dashboard.OnSummary(func(s core.DashboardSummary) {
		logger.Info("Dashboard",
			"income", core.FormatAmount(s.Income),
			"expenses", core.FormatAmount(s.Expenses),
			"balance", core.FormatAmount(s.Balance),
			"debt_remaining", core.FormatAmount(s.Debts.Remaining),
			"saved", core.FormatAmount(s.Savings.TotalSaved),
			"budgets_exceeded", s.Budgets.Exceeded)
	})

	loadAll(ctx, a, logger)
	if _, err := a.Dashboard.Load(ctx); err != nil {
		logger.Warn("Dashboard load failed", applog.FieldError, err)
	}
	if n := a.Budgets.ReportExceeded(); n > 0 {
		logger.Warn("Budgets over limit", "count", n)
	}

	cli.WaitForShutdown(ctx, done)
}

// loadAll fills every domain store.
func loadAll(ctx context.Context, a *app.App, logger *applog.Logger) {
	counts := map[core.Domain]func() (int, error){
		core.DomainExpense: func() (int, error) { l, err := a.Expenses.List(ctx); return len(l), err },
		core.DomainIncome:  func() (int, error) { l, err := a.Incomes.List(ctx); return len(l), err },
		core.DomainDebt:    func() (int, error) { l, err := a.Debts.List(ctx); return len(l), err },
		core.DomainSaving:  func() (int, error) { l, err := a.Savings.List(ctx); return len(l), err },
		core.DomainBudget:  func() (int, error) { l, err := a.Budgets.List(ctx); return len(l), err },
	}
	for _, d := range core.Domains() {
		n, err := counts[d]()
		if err != nil {
			logger.Warn("Initial load failed", applog.FieldDomain, d, applog.FieldError, err)
			continue
		}
		logger.Info("Loaded", applog.FieldDomain, d, "records", n)
	}
}
