// Package identity resolves the signed-in user from the session token and
// publishes login/logout changes.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"finflow/internal/stream"
)

var (
	ErrEmptyToken   = errors.New("empty token")
	ErrNoUserClaim  = errors.New("token carries no user id")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the resolved session. A zero Identity means signed out.
type Identity struct {
	UserID int64
	Email  string
	Token  string
}

// Authenticated reports whether a user id is available.
func (i Identity) Authenticated() bool {
	return i.UserID > 0
}

// Provider holds the current identity. The token is decoded without
// verifying its signature: the backend verifies it on every request, the
// client only needs the claims.
type Provider struct {
	mu      sync.Mutex
	parser  *jwt.Parser
	current *stream.BehaviorSubject[Identity]
}

// NewProvider creates a signed-out provider.
func NewProvider() *Provider {
	return &Provider{
		parser:  jwt.NewParser(),
		current: stream.NewBehaviorSubject(Identity{}),
	}
}

// Login decodes token and makes it the current identity.
func (p *Provider) Login(token string) error {
	id, err := p.decode(token)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Next(id)
	return nil
}

// Logout clears the current identity.
func (p *Provider) Logout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Next(Identity{})
}

// Current returns the current identity.
func (p *Provider) Current() Identity {
	return p.current.Value()
}

// CurrentUserID returns the signed-in user id, if any.
func (p *Provider) CurrentUserID() (int64, bool) {
	id := p.current.Value()
	return id.UserID, id.Authenticated()
}

// Token returns the raw session token, or "" when signed out.
func (p *Provider) Token() string {
	return p.current.Value().Token
}

// OnChange subscribes fn to identity changes. fn receives the current
// identity immediately.
func (p *Provider) OnChange(fn func(Identity)) (unsubscribe func()) {
	return p.current.Subscribe(fn)
}

// Decode resolves the identity carried by token without changing any
// provider state. The signature is not verified.
func Decode(token string) (Identity, error) {
	return decodeWith(jwt.NewParser(), token)
}

func (p *Provider) decode(token string) (Identity, error) {
	return decodeWith(p.parser, token)
}

func decodeWith(parser *jwt.Parser, token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, ErrEmptyToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid, err := userIDFromClaims(claims)
	if err != nil {
		return Identity{}, err
	}

	email, _ := claims["email"].(string)
	return Identity{UserID: uid, Email: email, Token: token}, nil
}

// userIDFromClaims looks at "userId", then "uid", then a numeric "sub".
func userIDFromClaims(claims jwt.MapClaims) (int64, error) {
	for _, key := range []string{"userId", "uid"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return int64(v), nil
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				return n, nil
			}
		}
	}

	sub, err := claims.GetSubject()
	if err == nil && sub != "" {
		if n, err := strconv.ParseInt(sub, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, ErrNoUserClaim
}
