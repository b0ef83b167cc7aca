// Package services holds the per-domain facades. Each facade owns the store,
// query cache and update broadcaster of its domain and is the only writer to
// them.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"finflow/internal/api"
	"finflow/internal/broadcast"
	"finflow/internal/cache"
	"finflow/internal/core"
	applog "finflow/internal/log"
	"finflow/internal/notify"
	"finflow/internal/store"
)

// Record is what a facade needs from a domain record.
type Record[T any] interface {
	RecordID() int64
	ForUser(uid int64) T
	Validate() error
}

// UserResolver returns the signed-in user id.
type UserResolver interface {
	CurrentUserID() (int64, bool)
}

// Deps are the collaborators shared by every facade.
type Deps struct {
	API      api.Requester
	Identity UserResolver
	Notify   *notify.Log
	Hub      *broadcast.Hub
	CacheTTL time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items []T
	Meta  cache.PageMeta
}

type pageResponse[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
}

// resource implements the list/page/get/mutate cycle shared by all domains.
type resource[T Record[T]] struct {
	domain core.Domain
	base   string

	api    api.Requester
	ids    UserResolver
	notes  *notify.Log
	store  *store.Store[int64, T]
	cache  *cache.QueryCache[T]
	bc     *broadcast.Broadcaster
	group  singleflight.Group
	logger *slog.Logger

	// mu orders fetch results against resets and mutations. gen moves on
	// every reset, mutation and invalidation; a fetch that started under an
	// older gen must not write back.
	mu  sync.Mutex
	gen uint64
}

func newResource[T Record[T]](domain core.Domain, base string, d Deps) *resource[T] {
	var opts []cache.Option
	if d.Clock != nil {
		opts = append(opts, cache.WithClock(d.Clock))
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := d.Hub
	if hub == nil {
		hub = broadcast.NewHub(logger)
	}
	notes := d.Notify
	if notes == nil {
		notes = notify.New()
	}
	return &resource[T]{
		domain: domain,
		base:   base,
		api:    d.API,
		ids:    d.Identity,
		notes:  notes,
		store:  store.New(func(t T) int64 { return t.RecordID() }),
		cache:  cache.New[T](d.CacheTTL, opts...),
		bc:     hub.For(domain),
		logger: logger.With(applog.FieldDomain, string(domain)),
	}
}

// Resetters returns the per-user state to clear on identity change.
func (r *resource[T]) Resetters() []cache.Resetter {
	return []cache.Resetter{cache.ResetFunc(r.reset)}
}

func (r *resource[T]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.store.Reset()
	r.cache.Reset()
}

func (r *resource[T]) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// commit runs apply unless the state moved on since gen was read. It
// reports whether apply ran.
func (r *resource[T]) commit(gen uint64, apply func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	apply()
	return true
}

// mutate applies a confirmed write and drops cached pages in one step, so
// no fetch started earlier can overwrite it.
func (r *resource[T]) mutate(apply func()) {
	r.mu.Lock()
	r.gen++
	apply()
	r.cache.Clear()
	r.mu.Unlock()
	r.bc.Notify()
}

func (r *resource[T]) userPath(uid int64, parts ...string) string {
	p := fmt.Sprintf("%s/user/%d", r.base, uid)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

func (r *resource[T]) recordPath(id int64, parts ...string) string {
	p := fmt.Sprintf("%s/%d", r.base, id)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

// List returns every record of the signed-in user. A valid cached result is
// returned without a request; otherwise the result replaces the store.
func (r *resource[T]) List(ctx context.Context) ([]T, error) {
	uid, ok := r.ids.CurrentUserID()
	if !ok {
		return nil, ErrUnauthenticated
	}
	key := cache.ListKey(uid)
	if e, ok := r.cache.Get(key); ok {
		r.logger.DebugContext(ctx, "List served from cache", applog.FieldCacheKey, key)
		return e.Data, nil
	}

	gen := r.generation()
	v, err, _ := r.group.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		items, err := api.Call[[]T](ctx, r.api, http.MethodGet, r.userPath(uid), nil, nil)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		stored := r.commit(gen, func() {
			r.cache.Put(key, items, len(items))
			r.store.ReplaceAll(items)
		})
		if !stored {
			r.logger.DebugContext(ctx, "Discarded list fetched before a reset", applog.FieldCacheKey, key)
		}
		return items, nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to list records", applog.FieldOperation, applog.OpList, applog.FieldError, err)
		return nil, fmt.Errorf("list %s: %w", r.domain, err)
	}
	return v.([]T), nil
}

// ListPaginated returns one page, from cache when the same query was fetched
// within the TTL.
func (r *resource[T]) ListPaginated(ctx context.Context, q cache.Query) (Page[T], error) {
	uid, ok := r.ids.CurrentUserID()
	if !ok {
		return Page[T]{}, ErrUnauthenticated
	}
	q.UserID = uid
	key := q.Key()
	if e, ok := r.cache.Get(key); ok {
		meta, _ := r.cache.ComputePageMeta(key, q.Size)
		return Page[T]{Items: e.Data, Meta: meta}, nil
	}

	gen := r.generation()
	v, err, _ := r.group.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		query := url.Values{}
		query.Set("page", strconv.Itoa(q.Page))
		query.Set("size", strconv.Itoa(q.Size))
		if q.SortField != "" {
			query.Set("sortBy", q.SortField)
		}
		if q.SortDir != "" {
			query.Set("sortDir", q.SortDir)
		}
		resp, err := api.Call[pageResponse[T]](ctx, r.api, http.MethodGet, r.userPath(uid, "paginated"), nil, query)
		if err != nil {
			return nil, err
		}
		if resp.Content == nil {
			resp.Content = []T{}
		}
		r.commit(gen, func() { r.cache.PutPage(q, resp.Content, resp.TotalElements) })
		return Page[T]{
			Items: resp.Content,
			Meta:  cache.PageMetaFor(q.Page, q.Size, resp.TotalElements),
		}, nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to list page", applog.FieldOperation, applog.OpPage, applog.FieldCacheKey, key, applog.FieldError, err)
		return Page[T]{}, fmt.Errorf("list %s page: %w", r.domain, err)
	}
	return v.(Page[T]), nil
}

// GetByID fetches one record. It does not touch the store.
func (r *resource[T]) GetByID(ctx context.Context, id int64) (T, error) {
	out, err := api.Call[T](ctx, r.api, http.MethodGet, r.recordPath(id), nil, nil)
	if err != nil {
		return out, fmt.Errorf("get %s %d: %w", r.domain, id, err)
	}
	return out, nil
}

// Snapshot returns the current store contents.
func (r *resource[T]) Snapshot() []T {
	return r.store.Snapshot()
}

// OnCollectionChange subscribes fn to the store. fn receives the current
// collection immediately.
// Later calls run while the facade applies a result, so fn must not call
// List, ListPaginated or a mutation of the same facade synchronously.
func (r *resource[T]) OnCollectionChange(fn func([]T)) (unsubscribe func()) {
	return r.store.OnCollectionChange(fn)
}

// OnUpdateSignal subscribes fn to the domain broadcaster.
func (r *resource[T]) OnUpdateSignal(fn func()) (unsubscribe func()) {
	return r.bc.OnUpdate(fn)
}

// requireUser resolves the user for a mutation. A failure is reported like
// any other failed mutation.
func (r *resource[T]) requireUser(ctx context.Context, action string) (int64, error) {
	uid, ok := r.ids.CurrentUserID()
	if !ok {
		return 0, r.fail(ctx, action, ErrUnauthenticated)
	}
	return uid, nil
}

// send performs one mutating request and, on success, applies the returned
// record locally before running onSuccess.
func (r *resource[T]) send(ctx context.Context, action, method, path string, body func(uid int64) any, onSuccess func(T)) (T, error) {
	var zero T
	uid, err := r.requireUser(ctx, action)
	if err != nil {
		return zero, err
	}
	saved, err := api.Call[T](ctx, r.api, method, path, body(uid), nil)
	if err != nil {
		return zero, r.fail(ctx, action, err)
	}
	r.mutate(func() {
		// a record without id cannot be keyed; the next list brings it in
		if saved.RecordID() != 0 {
			r.store.Upsert(saved)
		}
	})
	r.logger.InfoContext(ctx, "Record saved", applog.NewFields().
		WithOperation(action).
		WithRecord(string(r.domain), uid, saved.RecordID()).
		ToSlice()...)
	onSuccess(saved)
	return saved, nil
}

func (r *resource[T]) create(ctx context.Context, payload T, onSuccess func(T)) (T, error) {
	if err := payload.Validate(); err != nil {
		var zero T
		return zero, r.fail(ctx, notify.ActionCreate, err)
	}
	return r.send(ctx, notify.ActionCreate, http.MethodPost, r.base,
		func(uid int64) any { return payload.ForUser(uid) }, orPayload(payload, onSuccess))
}

func (r *resource[T]) update(ctx context.Context, id int64, payload T, onSuccess func(T)) (T, error) {
	if err := payload.Validate(); err != nil {
		var zero T
		return zero, r.fail(ctx, notify.ActionUpdate, err)
	}
	return r.send(ctx, notify.ActionUpdate, http.MethodPut, r.recordPath(id),
		func(uid int64) any { return payload.ForUser(uid) }, orPayload(payload, onSuccess))
}

// orPayload makes onSuccess describe the submitted payload when the backend
// echoed no record.
func orPayload[T Record[T]](payload T, onSuccess func(T)) func(T) {
	return func(saved T) {
		if saved.RecordID() == 0 {
			saved = payload
		}
		onSuccess(saved)
	}
}

// delete removes id. When the primary endpoint answers 404 or 403 the
// per-user endpoint is tried once before giving up. onSuccess receives the
// record as it was in the store, if it was there.
func (r *resource[T]) delete(ctx context.Context, id int64, onSuccess func(prev T, found bool)) error {
	uid, err := r.requireUser(ctx, notify.ActionDelete)
	if err != nil {
		return err
	}
	prev, found := r.store.Get(id)

	_, err = r.api.Request(ctx, http.MethodDelete, r.recordPath(id), nil, nil)
	if err != nil && api.IsNotFoundOrForbidden(err) {
		r.logger.WarnContext(ctx, "Primary delete rejected, trying per-user endpoint",
			applog.FieldRecordID, id, applog.FieldStatusCode, api.StatusCode(err))
		_, err = r.api.Request(ctx, http.MethodDelete, r.userPath(uid, strconv.FormatInt(id, 10)), nil, nil)
	}
	if err != nil {
		return r.fail(ctx, notify.ActionDelete, err)
	}

	r.mutate(func() { r.store.RemoveByID(id) })
	r.logger.InfoContext(ctx, "Record deleted", applog.NewFields().
		WithOperation(notify.ActionDelete).
		WithRecord(string(r.domain), uid, id).
		ToSlice()...)
	onSuccess(prev, found)
	return nil
}

// Invalidate drops cached pages without touching the store. Used when
// another process reports a change.
func (r *resource[T]) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.cache.Clear()
}

func (r *resource[T]) fail(ctx context.Context, action string, err error) error {
	reason := api.Reason(err)
	id := r.notes.OperationFailed(notify.CategoryFor(r.domain), action, reason)
	r.logger.ErrorContext(ctx, "Operation failed",
		applog.FieldOperation, action,
		applog.FieldNotificationID, id,
		applog.FieldError, err)
	return &OperationError{Domain: r.domain, Action: action, Reason: reason, Err: err}
}

// fetchOr performs a read-only aggregate request. Failures and missing
// identity degrade to the zero value of V.
func fetchOr[V any](ctx context.Context, ids UserResolver, req api.Requester, logger *slog.Logger, path func(uid int64) string, query url.Values) V {
	var zero V
	uid, ok := ids.CurrentUserID()
	if !ok {
		return zero
	}
	p := path(uid)
	v, err := api.Call[V](ctx, req, http.MethodGet, p, nil, query)
	if err != nil {
		logger.WarnContext(ctx, "Aggregate unavailable, using empty value",
			applog.FieldOperation, applog.OpAggregate, applog.FieldPath, p, applog.FieldError, err)
		return zero
	}
	return v
}

func (r *resource[T]) total(ctx context.Context, start, end core.Date) decimal.Decimal {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.String())
	}
	if !end.IsZero() {
		q.Set("end", end.String())
	}
	return fetchOr[decimal.Decimal](ctx, r.ids, r.api, r.logger,
		func(uid int64) string { return r.userPath(uid, "total") }, q)
}

func (r *resource[T]) breakdown(ctx context.Context, field string) []core.CategoryTotal {
	out := fetchOr[[]core.CategoryTotal](ctx, r.ids, r.api, r.logger,
		func(uid int64) string { return r.userPath(uid, "by", field) }, nil)
	if out == nil {
		return []core.CategoryTotal{}
	}
	return out
}

func (r *resource[T]) top(ctx context.Context, limit int) []T {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	out := fetchOr[[]T](ctx, r.ids, r.api, r.logger,
		func(uid int64) string { return r.userPath(uid, "top") }, q)
	if out == nil {
		return []T{}
	}
	return out
}

func (r *resource[T]) monthly(ctx context.Context, year int) []core.MonthTotal {
	q := url.Values{"year": {strconv.Itoa(year)}}
	out := fetchOr[[]core.MonthTotal](ctx, r.ids, r.api, r.logger,
		func(uid int64) string { return r.userPath(uid, "monthly") }, q)
	if out == nil {
		return []core.MonthTotal{}
	}
	return out
}
