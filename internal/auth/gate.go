package auth

import (
	"context"
	"strings"

	apperrors "usermgmt/internal/errors"
	"usermgmt/internal/model"
)

// UserLookup resolves a token subject to the current user record.
type UserLookup interface {
	FindUser(ctx context.Context, id uint) (*model.User, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, id uint) (*model.User, error)

// FindUser calls f(ctx, id).
func (f UserLookupFunc) FindUser(ctx context.Context, id uint) (*model.User, error) {
	return f(ctx, id)
}

// Gate turns bearer tokens into users.
type Gate struct {
	tokens *JWTService
	users  UserLookup
}

// NewGate creates a gate that verifies tokens with tokens and resolves subjects with users.
func NewGate(tokens *JWTService, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate verifies an access token and loads the user it names. A user deleted after the
// token was issued is rejected as an authentication failure.
func (g *Gate) Authenticate(ctx context.Context, bearer string) (*model.User, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, apperrors.ErrMissingToken
	}

	claims, err := g.tokens.ValidateToken(bearer, AccessToken)
	if err != nil {
		return nil, err
	}

	user, err := g.users.FindUser(ctx, claims.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.ErrUnknownSubject
		}
		return nil, apperrors.Internal("load authenticated user", err)
	}
	return user, nil
}

type requirementKind int

const (
	requireAdmin requirementKind = iota + 1
	requireSelfOrAdmin
)

// Requirement is a capability an authenticated user must hold. The zero value grants nothing.
type Requirement struct {
	kind   requirementKind
	target uint
}

// AdminOnly is met by admins.
func AdminOnly() Requirement {
	return Requirement{kind: requireAdmin}
}

// SelfOrAdmin is met by admins and by the user whose id is target.
func SelfOrAdmin(target uint) Requirement {
	return Requirement{kind: requireSelfOrAdmin, target: target}
}

// Authorize checks actor against req and returns a permission error when unmet.
func Authorize(actor *model.User, req Requirement) error {
	if actor == nil {
		return apperrors.ErrMissingToken
	}

	switch req.kind {
	case requireAdmin:
		if actor.IsAdmin() {
			return nil
		}
	case requireSelfOrAdmin:
		if actor.IsAdmin() || actor.ID == req.target {
			return nil
		}
	}
	return apperrors.ErrForbidden
}
