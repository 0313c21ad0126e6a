package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store"
	"tarpaulin/backend/internal/xid"
)

const (
	AdminRoleID  = domain.AdminRoleID
	WorkerRoleID = domain.WorkerRoleID
)

type Store struct {
	mu           sync.RWMutex
	transactions map[string]map[string]any
	salesEntries []domain.SalesEntry
	purchases    []domain.Purchase
	usersByID    map[string]domain.UserAccount
	roles        map[string]domain.Role
	auditLogs    []domain.AuditLog
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		transactions: make(map[string]map[string]any),
		salesEntries: make([]domain.SalesEntry, 0, 64),
		purchases:    make([]domain.Purchase, 0, 16),
		usersByID:    make(map[string]domain.UserAccount),
		roles:        make(map[string]domain.Role),
		auditLogs:    make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store with the Admin and Worker roles and one login per
// role for dev mode. Passwords come from SEED_ADMIN_PASSWORD and
// SEED_WORKER_PASSWORD, falling back to dev defaults with a warning. The
// server uses PostgreSQL whenever DATABASE_URL is set.
func NewSeeded(logger logrus.FieldLogger) *Store {
	s := New()
	s.PutRole(domain.Role{ID: AdminRoleID, Name: "Admin", Permissions: []string{"*"}})
	s.PutRole(domain.Role{ID: WorkerRoleID, Name: "Worker", Permissions: []string{"sales-entries:write", "purchases:write"}})

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	workerPwd := envOr("SEED_WORKER_PASSWORD", "worker123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_WORKER_PASSWORD") == "" {
		logger.Warn("memory store is using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_WORKER_PASSWORD to override")
	}

	for _, u := range []struct {
		id       string
		email    string
		password string
		roleID   string
	}{
		{"user-admin", "admin@tarpaulin.local", adminPwd, AdminRoleID},
		{"user-worker", "worker@tarpaulin.local", workerPwd, WorkerRoleID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err).Fatalf("failed to hash seed password for %s", u.email)
		}
		s.usersByID[u.id] = domain.UserAccount{
			ID:        u.id,
			Email:     u.email,
			Password:  string(hash),
			RoleID:    u.roleID,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// PutRole creates or replaces a role document.
func (s *Store) PutRole(role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = role
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for id, fields := range s.transactions {
		result = append(result, domain.TransactionFromFields(id, fields))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	result, err := s.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(result, func(a, b domain.Transaction) int {
		switch {
		case a.HasDate() && !b.HasDate():
			return -1
		case !a.HasDate() && b.HasDate():
			return 1
		}
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListTransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	all, err := s.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Transaction, 0, len(all))
	for _, tx := range all {
		if !tx.HasDate() || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		result = append(result, tx)
	}
	slices.SortStableFunc(result, func(a, b domain.Transaction) int {
		return a.Date.Compare(b.Date)
	})
	return result, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx := domain.TransactionFromFields(id, fields)
	return &tx, nil
}

// Fields returns a copy of the raw stored document, for tests that check
// merge behaviour on fields the domain type does not model.
func (s *Store) Fields(id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	return cloneFields(fields), true
}

func (s *Store) PutTransaction(_ context.Context, id string, fields map[string]any) error {
	if id == "" || len(fields) == 0 {
		return store.ErrInvalidDocument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[id] = cloneFields(fields)
	return nil
}

func (s *Store) MergeTransactions(_ context.Context, writes []store.MergeWrite) error {
	if err := store.ValidateMerge(writes); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		doc, ok := s.transactions[w.ID]
		if !ok {
			doc = make(map[string]any, len(w.Fields))
			s.transactions[w.ID] = doc
		}
		for k, v := range w.Fields {
			doc[k] = v
		}
	}
	return nil
}

func (s *Store) CreateSalesEntry(_ context.Context, entry domain.SalesEntry) (*domain.SalesEntry, error) {
	if entry.Date.IsZero() {
		return nil, store.ErrInvalidDocument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("entry")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.salesEntries = append(s.salesEntries, entry)
	return &entry, nil
}

func (s *Store) ListSalesEntries(_ context.Context, limit int) ([]domain.SalesEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.salesEntries)
	slices.SortStableFunc(result, func(a, b domain.SalesEntry) int {
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListSalesEntriesInRange(_ context.Context, from time.Time, to time.Time) ([]domain.SalesEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SalesEntry, 0, 16)
	for _, entry := range s.salesEntries {
		if entry.Date.Before(from) || entry.Date.After(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortStableFunc(result, func(a, b domain.SalesEntry) int {
		return a.Date.Compare(b.Date)
	})
	return result, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.Date.IsZero() {
		return nil, store.ErrInvalidDocument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" {
		purchase.ID = xid.New("purchase")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	s.purchases = append(s.purchases, purchase)
	return &purchase, nil
}

func (s *Store) ListPurchases(_ context.Context, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.purchases)
	slices.SortStableFunc(result, func(a, b domain.Purchase) int {
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = normalizeEmail(email)
	for _, user := range s.usersByID {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByID))
	for _, user := range s.usersByID {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	if user.Email == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidDocument
	}
	for _, existing := range s.usersByID {
		if existing.Email == user.Email {
			return nil, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByID[user.ID] = user
	return &user, nil
}

func (s *Store) GetRole(_ context.Context, id string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &role, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.auditLogs)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneFields(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
