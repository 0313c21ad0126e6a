// Package access decides which views a signed-in user may see.
package access

import (
	"context"
	"errors"
	"fmt"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store"
)

const DefaultAdminRoleName = "Admin"

type Access struct {
	IsAdmin bool `json:"is_admin"`
}

type Store interface {
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
}

// Resolver follows a user's profile to its role document. A user is an
// admin only when that role's name matches adminRoleName exactly.
type Resolver struct {
	store         Store
	adminRoleName string
}

func NewResolver(s Store, adminRoleName string) *Resolver {
	if adminRoleName == "" {
		adminRoleName = DefaultAdminRoleName
	}
	return &Resolver{store: s, adminRoleName: adminRoleName}
}

// Resolve never reports admin for an unknown user, a user without a role or
// a dangling role id. Store failures other than not-found are returned.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Access, error) {
	if userID == "" {
		return Access{}, nil
	}
	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Access{}, nil
		}
		return Access{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !user.Active || user.RoleID == "" {
		return Access{}, nil
	}
	role, err := r.store.GetRole(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Access{}, nil
		}
		return Access{}, fmt.Errorf("load role %s: %w", user.RoleID, err)
	}
	return Access{IsAdmin: role.Name == r.adminRoleName}, nil
}
