// Package identity resolves caller-supplied identity tokens. A token is
// either an integer surrogate key or a UUID; anything else is rejected.
package identity

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
)

// Kind describes the form an identity token was resolved to.
type Kind int

const (
	// KindID marks an integer surrogate key.
	KindID Kind = iota

	// KindUUID marks a UUID.
	KindUUID
)

// Identity is a resolved identity token.
type Identity struct {
	Kind Kind
	ID   int64
	UUID string
}

// Parse resolves an identity token. Integer interpretation is attempted
// first, then UUID interpretation; a token matching neither form fails
// with an InvalidIdentity error.
func Parse(ident string) (Identity, error) {
	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		return Identity{Kind: KindID, ID: id}, nil
	}
	if parsed, err := uuid.Parse(ident); err == nil {
		return Identity{Kind: KindUUID, UUID: parsed.String()}, nil
	}
	return Identity{}, errdefs.NewInvalidIdentity(ident)
}

// IsUUID reports whether the token is a well-formed UUID.
func IsUUID(ident string) bool {
	_, err := uuid.Parse(ident)
	return err == nil
}

// New generates a new random UUID string.
func New() string {
	return uuid.New().String()
}
