package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow/internal/cache"
	"finflow/internal/core"
	"finflow/internal/notify"
)

func expense(id int64, amt, category string) core.Expense {
	return core.Expense{ID: id, UserID: 1, Amount: decimal.RequireFromString(amt), Category: category, Date: core.NewDate(2025, 3, 1)}
}

func storeIDs(s *ExpenseService) []int64 {
	var ids []int64
	for _, e := range s.Snapshot() {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestExpenseService_CreateUpsertsNotifiesAndClearsCache(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	f.api.reply(http.MethodGet, "/api/expenses/user/1", []core.Expense{expense(1, "10", "FOOD")})
	f.api.reply(http.MethodGet, "/api/expenses/user/1/paginated", map[string]any{
		"content":       []core.Expense{expense(1, "10", "FOOD")},
		"totalElements": 1,
	})
	f.api.on(http.MethodPost, "/api/expenses", func(c call) (any, error) {
		e := c.Body.(core.Expense)
		e.ID = 7
		return e, nil
	})

	_, err := svc.List(ctx)
	require.NoError(t, err)
	q := cache.Query{Page: 0, Size: 10, SortField: "date", SortDir: "DESC"}
	_, err = svc.ListPaginated(ctx, q)
	require.NoError(t, err)

	signals := 0
	svc.OnUpdateSignal(func() { signals++ })

	saved, err := svc.Create(ctx, core.Expense{Amount: decimal.RequireFromString("42.50"), Category: "GROCERIES"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.ID)

	sent, ok := f.api.last(http.MethodPost, "/api/expenses")
	require.True(t, ok)
	assert.Equal(t, int64(1), sent.Body.(core.Expense).UserID)

	assert.Equal(t, []int64{7, 1}, storeIDs(svc))
	assert.Equal(t, 1, signals)

	entries := f.notes.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.TypeSuccess, entries[0].Type)
	assert.Contains(t, entries[0].Message, "42.50")
	assert.Contains(t, entries[0].Message, "GROCERIES")

	_, err = svc.ListPaginated(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.count(http.MethodGet, "/api/expenses/user/1/paginated"))
}

func TestExpenseService_DeleteFallsBackOnNotFound(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	f.api.reply(http.MethodGet, "/api/expenses/user/1", []core.Expense{expense(3, "5", "FUEL"), expense(4, "8", "FOOD")})
	f.api.fail(http.MethodDelete, "/api/expenses/3", http.StatusNotFound, "Expense not found")
	f.api.reply(http.MethodDelete, "/api/expenses/user/1/3", nil)

	_, err := svc.List(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 3))

	assert.Equal(t, 1, f.api.count(http.MethodDelete, "/api/expenses/3"))
	assert.Equal(t, 1, f.api.count(http.MethodDelete, "/api/expenses/user/1/3"))
	assert.Equal(t, []int64{4}, storeIDs(svc))

	entries := f.notes.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.ActionDelete, entries[0].Action)
	assert.Equal(t, notify.TypeSuccess, entries[0].Type)
	assert.Contains(t, entries[0].Message, "FUEL")
}

func TestExpenseService_DeleteFallbackOnForbiddenOnly(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)

	f.api.fail(http.MethodDelete, "/api/expenses/9", http.StatusInternalServerError, "boom")

	err := svc.Delete(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, 0, f.api.count(http.MethodDelete, "/api/expenses/user/1/9"))

	f.api.fail(http.MethodDelete, "/api/expenses/9", http.StatusForbidden, "")
	f.api.fail(http.MethodDelete, "/api/expenses/user/1/9", http.StatusForbidden, "Not yours")
	err = svc.Delete(context.Background(), 9)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Not yours", opErr.Reason)
	assert.Equal(t, 1, f.api.count(http.MethodDelete, "/api/expenses/user/1/9"))
	assert.Len(t, f.notes.Entries(), 2)
}

func TestExpenseService_ListWithinTTLHitsNetworkOnce(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()
	f.api.reply(http.MethodGet, "/api/expenses/user/1", []core.Expense{expense(1, "1", "A")})

	_, err := svc.List(ctx)
	require.NoError(t, err)
	f.clock.Advance(4 * time.Minute)
	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, f.api.count(http.MethodGet, "/api/expenses/user/1"))

	f.clock.Advance(time.Minute + time.Millisecond)
	_, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.count(http.MethodGet, "/api/expenses/user/1"))
}

func TestExpenseService_UnauthenticatedMakesNoRequest(t *testing.T) {
	f := newFixture()
	f.user.uid = 0
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	_, err := svc.Create(ctx, expense(0, "1", "A"))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, svc.Delete(ctx, 1), ErrUnauthenticated)
	_, err = svc.List(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Equal(t, 0, f.api.total())
	for _, e := range f.notes.Entries() {
		assert.Equal(t, notify.TypeError, e.Type)
	}
	assert.Len(t, f.notes.Entries(), 2)
}

func TestExpenseService_FailedCreateLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	f.api.reply(http.MethodGet, "/api/expenses/user/1/paginated", map[string]any{
		"content":       []core.Expense{expense(1, "10", "FOOD")},
		"totalElements": 1,
	})
	f.api.fail(http.MethodPost, "/api/expenses", http.StatusBadRequest, "Category is required")

	q := cache.Query{Page: 0, Size: 20}
	_, err := svc.ListPaginated(ctx, q)
	require.NoError(t, err)

	_, err = svc.Create(ctx, expense(0, "3", "FOOD"))
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, core.DomainExpense, opErr.Domain)
	assert.Equal(t, notify.ActionCreate, opErr.Action)
	assert.Equal(t, "Category is required", opErr.Reason)

	assert.Empty(t, svc.Snapshot())
	_, err = svc.ListPaginated(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.count(http.MethodGet, "/api/expenses/user/1/paginated"))

	entries := f.notes.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.TypeError, entries[0].Type)
	assert.Contains(t, entries[0].Message, "Category is required")
}

func TestExpenseService_InvalidPayloadRejectedLocally(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)

	_, err := svc.Create(context.Background(), core.Expense{Amount: decimal.Zero, Category: "A"})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Equal(t, 0, f.api.total())
	assert.Len(t, f.notes.Entries(), 1)
}

func TestExpenseService_ListPaginatedMeta(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	f.api.on(http.MethodGet, "/api/expenses/user/1/paginated", func(c call) (any, error) {
		assert.Equal(t, "2", c.Query.Get("page"))
		assert.Equal(t, "10", c.Query.Get("size"))
		assert.Equal(t, "amount", c.Query.Get("sortBy"))
		assert.Equal(t, "asc", c.Query.Get("sortDir"))
		return map[string]any{"content": []core.Expense{expense(21, "1", "A")}, "totalElements": 21}, nil
	})

	q := cache.Query{Page: 2, Size: 10, SortField: "amount", SortDir: "asc"}
	for i := 0; i < 2; i++ {
		page, err := svc.ListPaginated(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, 3, page.Meta.TotalPages)
		assert.False(t, page.Meta.IsFirst)
		assert.True(t, page.Meta.IsLast)
	}
	assert.Equal(t, 1, f.api.total())
}

func TestExpenseService_AggregatesDegradeToEmpty(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	f.api.fail(http.MethodGet, "/api/expenses/user/1/by/category", http.StatusInternalServerError, "down")

	assert.Empty(t, svc.ByCategory(ctx))
	assert.NotNil(t, svc.ByCategory(ctx))
	assert.True(t, svc.TotalForPeriod(ctx, core.Date{}, core.Date{}).IsZero())
	assert.Empty(t, svc.Top(ctx, 3))
	assert.Empty(t, svc.MonthlyEvolution(ctx, 2025))
	assert.Empty(t, f.notes.Entries())
}

func TestExpenseService_Aggregates(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	f.api.on(http.MethodGet, "/api/expenses/user/1/total", func(c call) (any, error) {
		assert.Equal(t, "2025-03-01", c.Query.Get("start"))
		assert.Equal(t, "2025-03-31", c.Query.Get("end"))
		return 123.45, nil
	})
	f.api.reply(http.MethodGet, "/api/expenses/user/1/by/paymentMethod", []core.CategoryTotal{
		{Key: "CARD", Total: decimal.RequireFromString("100")},
	})
	f.api.on(http.MethodGet, "/api/expenses/user/1/top", func(c call) (any, error) {
		assert.Equal(t, "2", c.Query.Get("limit"))
		return []core.Expense{expense(1, "90", "RENT"), expense(2, "50", "FOOD")}, nil
	})
	f.api.reply(http.MethodGet, "/api/expenses/user/1/monthly", []core.MonthTotal{{Month: 3, Total: decimal.RequireFromString("140")}})

	total := svc.TotalForPeriod(ctx, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	assert.Equal(t, "123.45", core.FormatAmount(total))
	assert.Equal(t, "CARD", svc.ByPaymentMethod(ctx)[0].Key)
	assert.Len(t, svc.Top(ctx, 2), 2)
	assert.Equal(t, 3, svc.MonthlyEvolution(ctx, 2025)[0].Month)
}

func TestExpenseService_ConcurrentListsShareOneRequest(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	release := make(chan struct{})
	f.api.on(http.MethodGet, "/api/expenses/user/1", func(call) (any, error) {
		<-release
		return []core.Expense{expense(1, "1", "A")}, nil
	})

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := svc.List(context.Background())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return f.api.total() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, 1, f.api.count(http.MethodGet, "/api/expenses/user/1"))
}

func TestOperationError_Unwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&OperationError{Domain: core.DomainDebt, Action: "update", Reason: "boom", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "update debt: boom", err.Error())
}

func TestExpenseService_ListFinishingAfterUserSwitchIsNotKept(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	slow, started, release := held([]core.Expense{expense(11, "5", "USER1-PRIVATE")})
	f.api.on(http.MethodGet, "/api/expenses/user/1", slow)
	other := expense(21, "9", "USER2")
	other.UserID = 2
	f.api.reply(http.MethodGet, "/api/expenses/user/2", []core.Expense{other})

	done := make(chan error, 1)
	go func() {
		_, err := svc.List(ctx)
		done <- err
	}()
	<-started
	f.user.switchTo(2)
	for _, r := range svc.Resetters() {
		r.Reset()
	}
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, svc.Snapshot())

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(21), list[0].ID)
	assert.Equal(t, []int64{21}, storeIDs(svc))
	assert.Equal(t, 1, f.api.count(http.MethodGet, "/api/expenses/user/2"))
}

func TestExpenseService_ListStartedBeforeCreateDoesNotUndoIt(t *testing.T) {
	f := newFixture()
	svc := NewExpenseService(f.deps)
	ctx := context.Background()

	slow, started, release := held([]core.Expense{expense(1, "10", "FOOD")})
	f.api.on(http.MethodGet, "/api/expenses/user/1", slow)
	f.api.on(http.MethodPost, "/api/expenses", func(c call) (any, error) {
		e := c.Body.(core.Expense)
		e.ID = 7
		return e, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := svc.List(ctx)
		done <- err
	}()
	<-started

	_, err := svc.Create(ctx, core.Expense{Amount: decimal.RequireFromString("42.50"), Category: "GROCERIES"})
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []int64{7}, storeIDs(svc))

	_, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.count(http.MethodGet, "/api/expenses/user/1"))
}
