package postgres

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store"
	"tarpaulin/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables and seeds the Admin and Worker roles.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", mapError(err))
		}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT id, doc
		FROM transactions
		ORDER BY id
	`)
}

func (s *Store) ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 6
	}
	return s.queryTransactions(ctx, `
		SELECT id, doc
		FROM transactions
		ORDER BY date_at DESC NULLS LAST, id
		LIMIT $1
	`, limit)
}

func (s *Store) ListTransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT id, doc
		FROM transactions
		WHERE date_at >= $1 AND date_at <= $2
		ORDER BY date_at, id
	`, from.UTC(), to.UTC())
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeDoc(raw)
		if err != nil {
			// keep the row so aggregation can count it as malformed
			fields = map[string]any{}
		}
		result = append(result, domain.TransactionFromFields(id, fields))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc
		FROM transactions
		WHERE id = $1
	`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	fields, err := decodeDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", id, store.ErrInvalidDocument)
	}
	tx := domain.TransactionFromFields(id, fields)
	return &tx, nil
}

func (s *Store) PutTransaction(ctx context.Context, id string, fields map[string]any) error {
	if id == "" || len(fields) == 0 {
		return store.ErrInvalidDocument
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode transaction %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, doc, date_at, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (id)
		DO UPDATE SET doc = EXCLUDED.doc, date_at = EXCLUDED.date_at, updated_at = now()
	`, id, string(doc), dateColumn(fields))
	return mapError(err)
}

// MergeTransactions runs every merge in one serializable transaction. The
// JSONB || operator keeps fields the write does not name.
func (s *Store) MergeTransactions(ctx context.Context, writes []store.MergeWrite) error {
	if err := store.ValidateMerge(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	stmt, err := pgTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, doc, date_at, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (id)
		DO UPDATE SET
			doc = transactions.doc || EXCLUDED.doc,
			date_at = COALESCE(EXCLUDED.date_at, transactions.date_at),
			updated_at = now()
	`)
	if err != nil {
		return mapError(err)
	}
	defer stmt.Close()

	for _, w := range writes {
		doc, err := json.Marshal(w.Fields)
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", w.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, w.ID, string(doc), dateColumn(w.Fields)); err != nil {
			return fmt.Errorf("merge transaction %s: %w", w.ID, mapError(err))
		}
	}
	return mapError(pgTx.Commit())
}

func (s *Store) CreateSalesEntry(ctx context.Context, entry domain.SalesEntry) (*domain.SalesEntry, error) {
	if entry.Date.IsZero() {
		return nil, store.ErrInvalidDocument
	}
	if entry.ID == "" {
		entry.ID = xid.New("entry")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales_entries (id, entry_date, size, pieces, amount, branch, worker_name, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.Date.UTC(), entry.Size, entry.Pieces, entry.Amount, entry.Branch, entry.WorkerName, entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, mapError(err)
	}
	return &entry, nil
}

func (s *Store) ListSalesEntries(ctx context.Context, limit int) ([]domain.SalesEntry, error) {
	if limit < 1 {
		limit = 100
	}
	return s.querySalesEntries(ctx, `
		SELECT id, entry_date, size, pieces, amount, branch, worker_name, created_by, created_at
		FROM sales_entries
		ORDER BY entry_date DESC, seq DESC
		LIMIT $1
	`, limit)
}

func (s *Store) ListSalesEntriesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.SalesEntry, error) {
	return s.querySalesEntries(ctx, `
		SELECT id, entry_date, size, pieces, amount, branch, worker_name, created_by, created_at
		FROM sales_entries
		WHERE entry_date >= $1 AND entry_date <= $2
		ORDER BY entry_date, seq
	`, from.UTC(), to.UTC())
}

func (s *Store) querySalesEntries(ctx context.Context, query string, args ...any) ([]domain.SalesEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := make([]domain.SalesEntry, 0, 64)
	for rows.Next() {
		var e domain.SalesEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.Size, &e.Pieces, &e.Amount, &e.Branch, &e.WorkerName, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

func (s *Store) CreatePurchase(ctx context.Context, p domain.Purchase) (*domain.Purchase, error) {
	if p.Date.IsZero() || strings.TrimSpace(p.Vendor) == "" {
		return nil, store.ErrInvalidDocument
	}
	if p.ID == "" {
		p.ID = xid.New("purchase")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	weights, err := json.Marshal(p.SheetWeights)
	if err != nil {
		return nil, err
	}
	sheets, err := json.Marshal(p.EstimatedSheets)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases (
			id, purchase_date, vendor, total_kg, total_cost, transport_cost, gst,
			sheet_weights, estimated_sheets, avg_cost_per_kg, bill_photo_ref, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9::jsonb,$10,$11,$12,$13)
	`, p.ID, p.Date.UTC(), p.Vendor, p.TotalKg, p.TotalCost, p.TransportCost, p.GST,
		string(weights), string(sheets), p.AvgCostPerKg, p.BillPhotoRef, p.CreatedBy, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, mapError(err)
	}
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, purchase_date, vendor, total_kg, total_cost, transport_cost, gst,
			sheet_weights, estimated_sheets, avg_cost_per_kg, bill_photo_ref, created_by, created_at
		FROM purchases
		ORDER BY purchase_date DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		var p domain.Purchase
		var weights, sheets []byte
		if err := rows.Scan(&p.ID, &p.Date, &p.Vendor, &p.TotalKg, &p.TotalCost, &p.TransportCost, &p.GST,
			&weights, &sheets, &p.AvgCostPerKg, &p.BillPhotoRef, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.SheetWeights = map[string]decimal.Decimal{}
		if err := json.Unmarshal(weights, &p.SheetWeights); err != nil {
			return nil, fmt.Errorf("decode sheet weights for %s: %w", p.ID, err)
		}
		p.EstimatedSheets = map[string]int64{}
		if err := json.Unmarshal(sheets, &p.EstimatedSheets); err != nil {
			return nil, fmt.Errorf("decode estimated sheets for %s: %w", p.ID, err)
		}
		p.Date = p.Date.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return purchases, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return s.getUser(ctx, `
		SELECT id, email, password, role_id, active, created_at
		FROM app_users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return s.getUser(ctx, `
		SELECT id, email, password, role_id, active, created_at
		FROM app_users
		WHERE id = $1
	`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Password, &user.RoleID, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, password, role_id, active, created_at
		FROM app_users
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Email, &user.Password, &user.RoleID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidDocument
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, email, password, role_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.ID, user.Email, user.Password, user.RoleID, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, mapError(err)
	}
	return &user, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	var role domain.Role
	var perms []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, permissions
		FROM roles
		WHERE id = $1
	`, id).Scan(&role.ID, &role.Name, &perms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	if err := json.Unmarshal(perms, &role.Permissions); err != nil {
		return nil, fmt.Errorf("decode role %s permissions: %w", id, err)
	}
	return &role, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, collection, doc_id, user_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Action, entry.Collection, entry.DocID, entry.UserID, entry.Detail, entry.CreatedAt)
	return mapError(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, collection, doc_id, user_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Collection, &entry.DocID, &entry.UserID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return logs, nil
}

func decodeDoc(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// dateColumn mirrors the document's date into the indexed column. Unparseable
// dates are stored as NULL and the document keeps the raw value.
func dateColumn(fields map[string]any) any {
	at, ok := domain.ParseInstant(fields[domain.FieldDate])
	if !ok {
		return nil
	}
	return at
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %s", store.ErrPermissionDenied, pgErr.Message)
	}
	return err
}
