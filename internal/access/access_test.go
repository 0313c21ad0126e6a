package access

import (
	"context"
	"testing"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store/memory"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	s.PutRole(domain.Role{ID: "r-admin", Name: "Admin"})
	s.PutRole(domain.Role{ID: "r-staff", Name: "Worker"})
	for _, u := range []domain.UserAccount{
		{ID: "u-admin", Email: "a@example.com", Password: "x", RoleID: "r-admin"},
		{ID: "u-staff", Email: "s@example.com", Password: "x", RoleID: "r-staff"},
		{ID: "u-norole", Email: "n@example.com", Password: "x"},
		{ID: "u-dangling", Email: "d@example.com", Password: "x", RoleID: "r-gone"},
	} {
		if _, err := s.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user %s: %v", u.ID, err)
		}
	}
	return s
}

func TestResolve(t *testing.T) {
	r := NewResolver(newStore(t), "")
	cases := map[string]bool{
		"":           false,
		"u-admin":    true,
		"u-staff":    false,
		"u-norole":   false,
		"u-dangling": false,
		"u-missing":  false,
	}
	for userID, want := range cases {
		got, err := r.Resolve(context.Background(), userID)
		if err != nil {
			t.Fatalf("resolve %q: %v", userID, err)
		}
		if got.IsAdmin != want {
			t.Fatalf("resolve %q: expected admin=%v, got %v", userID, want, got.IsAdmin)
		}
	}
}

func TestResolveHonoursConfiguredRoleName(t *testing.T) {
	r := NewResolver(newStore(t), "Worker")
	got, err := r.Resolve(context.Background(), "u-staff")
	if err != nil || !got.IsAdmin {
		t.Fatalf("expected Worker to be the admin role, got %+v (%v)", got, err)
	}
}
