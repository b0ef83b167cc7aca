package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func writeEnvelope(w http.ResponseWriter, status int, success bool, msg string, data any) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: success, Message: msg, Data: raw, Path: "/x", Timestamp: time.Now().Format(time.RFC3339)})
}

func TestClient_RequestSuccess(t *testing.T) {
	var gotAuth, gotQuery, gotBody, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		writeEnvelope(w, http.StatusOK, true, "ok", map[string]int{"id": 9})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, staticToken("tok"))
	out, err := Call[map[string]int](context.Background(), c, http.MethodPost, "/api/things", map[string]string{"a": "b"}, url.Values{"page": {"1"}})

	require.NoError(t, err)
	assert.Equal(t, 9, out["id"])
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "page=1", gotQuery)
	assert.Equal(t, "application/json", gotCT)
	assert.JSONEq(t, `{"a":"b"}`, gotBody)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, false, "expense not found", nil)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Request(context.Background(), http.MethodDelete, "/api/expenses/1", nil, nil)

	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.True(t, IsNotFoundOrForbidden(err))
	assert.Equal(t, "expense not found", Reason(err))
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Request(context.Background(), http.MethodGet, "/x", nil, nil)

	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Equal(t, "Bad Gateway", Reason(err))
	assert.False(t, IsNotFoundOrForbidden(err))
}

func TestClient_UnsuccessfulEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, false, "nope", nil)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Request(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.ErrorIs(t, err, ErrUnsuccessful)
}

func TestClient_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	env, err := NewClient(srv.URL, time.Second, nil).Request(context.Background(), http.MethodDelete, "/x", nil, nil)
	require.NoError(t, err)
	assert.True(t, env.Success)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "plain", Reason(errors.New("plain")))
	wrapped := fmt.Errorf("wrap: %w", &StatusError{StatusCode: 403})
	assert.Equal(t, "Forbidden", Reason(wrapped))
	assert.True(t, IsNotFoundOrForbidden(wrapped))
}
