package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"finflow/internal/api"
	"finflow/internal/broadcast"
	"finflow/internal/notify"
)

type call struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
}

type handler func(c call) (any, error)

// fakeAPI routes requests by "METHOD path". Unrouted requests answer 404.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []call
	routes map[string]handler
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{routes: make(map[string]handler)}
}

func (f *fakeAPI) on(method, path string, h handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

func (f *fakeAPI) reply(method, path string, v any) {
	f.on(method, path, func(call) (any, error) { return v, nil })
}

func (f *fakeAPI) fail(method, path string, status int, msg string) {
	f.on(method, path, func(c call) (any, error) {
		return nil, &api.StatusError{StatusCode: status, Message: msg, Method: c.Method, Path: c.Path}
	})
}

func (f *fakeAPI) Request(_ context.Context, method, path string, body any, query url.Values) (*api.Envelope, error) {
	c := call{Method: method, Path: path, Body: body, Query: query}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h, ok := f.routes[method+" "+path]
	f.mu.Unlock()

	if !ok {
		return nil, &api.StatusError{StatusCode: http.StatusNotFound, Method: method, Path: path}
	}
	v, err := h(c)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &api.Envelope{Success: true, Data: raw}, nil
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) last(method, path string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method && f.calls[i].Path == path {
			return f.calls[i], true
		}
	}
	return call{}, false
}

type fakeUser struct {
	mu  sync.Mutex
	uid int64
}

func (u *fakeUser) CurrentUserID() (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.uid, u.uid > 0
}

func (u *fakeUser) switchTo(uid int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uid = uid
}

// held answers v only after release is closed; started is closed when the
// request arrives.
func held(v any) (h handler, started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	var once sync.Once
	h = func(call) (any, error) {
		once.Do(func() { close(started) })
		<-release
		return v, nil
	}
	return h, started, release
}

// holdScheduler never fires, so notifications stay put during a test.
type holdScheduler struct{}

func (holdScheduler) AfterFunc(time.Duration, func()) {}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	api   *fakeAPI
	user  *fakeUser
	notes *notify.Log
	hub   *broadcast.Hub
	clock *testClock
	deps  Deps
}

func newFixture() *fixture {
	f := &fixture{
		api:   newFakeAPI(),
		user:  &fakeUser{uid: 1},
		notes: notify.New(notify.WithScheduler(holdScheduler{})),
		hub:   broadcast.NewHub(nil),
		clock: &testClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)},
	}
	f.deps = Deps{
		API:      f.api,
		Identity: f.user,
		Notify:   f.notes,
		Hub:      f.hub,
		CacheTTL: 5 * time.Minute,
		Clock:    f.clock.Now,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return f
}
