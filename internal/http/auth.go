package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finflow/internal/identity"
	"finflow/internal/storage"
)

var (
	errForbidden    = errors.New("record belongs to another user")
	errMissingOwner = errors.New("userId is required")
)

// caller is the user named by the request's bearer token. Requests without
// a token are anonymous and may act for any user: the dev server trusts the
// userId it is given.
type caller struct {
	userID int64
	authed bool
}

// callerFrom decodes the Authorization header. The signature is not
// verified.
func callerFrom(r *http.Request) (caller, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return caller{}, nil
	}
	id, err := identity.Decode(h)
	if err != nil {
		return caller{}, err
	}
	return caller{userID: id.UserID, authed: true}, nil
}

// mayActFor reports whether c may touch records of uid.
func (c caller) mayActFor(uid int64) bool {
	return !c.authed || c.userID == uid
}

// ownerOf resolves the owner of a create or update payload: the body's
// userId, else the token's user.
func (c caller) ownerOf(doc storage.Document) (int64, error) {
	uid := doc.Decimal("userId")
	if !uid.IsPositive() || !uid.Equal(decimal.NewFromInt(uid.IntPart())) {
		if c.authed {
			return c.userID, nil
		}
		return 0, errMissingOwner
	}
	if !c.mayActFor(uid.IntPart()) {
		return 0, errForbidden
	}
	return uid.IntPart(), nil
}
