package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/prayer-ledger/generic"
)

// IdentityResolver extracts the current user from a request. Identity is
// established upstream; the resolver only reads it.
type IdentityResolver interface {
	Resolve(r *http.Request) (generic.User, bool)
}

// HeaderIdentity trusts the X-User-ID / X-User-Name headers set by the
// fronting proxy.
type HeaderIdentity struct{}

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

func (HeaderIdentity) Resolve(r *http.Request) (generic.User, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return generic.User{}, false
	}
	return generic.User{
		ID:          generic.UserID(id),
		DisplayName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
	}, true
}

type userKey struct{}

func withUser(ctx context.Context, u generic.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user attached by the identity middleware.
func UserFromContext(ctx context.Context) (generic.User, bool) {
	u, ok := ctx.Value(userKey{}).(generic.User)
	return u, ok
}
