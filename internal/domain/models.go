package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeSale     TransactionType = "sale"
	TypePurchase TransactionType = "purchase"
	TypeExpense  TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeSale, TypePurchase, TypeExpense:
		return true
	}
	return false
}

const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

// Standard sheet sizes. Anything else is stored as free text.
const (
	Size18x24 = "18x24"
	Size24x30 = "24x30"
	Size30x40 = "30x40"
	SizeOther = "other"
)

var StandardSizes = []string{Size18x24, Size24x30, Size30x40}

// Document field names used in the transaction collection.
const (
	FieldDate        = "date"
	FieldType        = "type"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldAmount      = "amount"
	FieldBranch      = "branch"
	FieldWorkerName  = "workerName"
	FieldPieces      = "pieces"
	FieldGrossProfit = "grossProfit"
	FieldNetProfit   = "netProfit"
	FieldSyncStatus  = "syncStatus"
)

// SalesEntry is one raw sale recorded by a worker at a branch.
type SalesEntry struct {
	ID         string          `json:"id"`
	Date       time.Time       `json:"date"`
	Size       string          `json:"size"`
	Pieces     int             `json:"pieces"`
	Amount     decimal.Decimal `json:"amount"`
	Branch     string          `json:"branch"`
	WorkerName string          `json:"worker_name"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Transaction is a summary document in the transaction collection. Amount
// and Date may be absent on documents written by older clients.
type Transaction struct {
	ID          string              `json:"id"`
	Date        time.Time           `json:"date"`
	Type        TransactionType     `json:"type"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Amount      decimal.NullDecimal `json:"amount"`
	Branch      string              `json:"branch,omitempty"`
	WorkerName  string              `json:"worker_name,omitempty"`
	Pieces      int                 `json:"pieces,omitempty"`
	GrossProfit decimal.NullDecimal `json:"gross_profit"`
	NetProfit   decimal.NullDecimal `json:"net_profit"`
	SyncStatus  string              `json:"sync_status,omitempty"`
}

func (t Transaction) HasDate() bool {
	return !t.Date.IsZero()
}

// Fields renders the transaction as a full document for an overwrite.
func (t Transaction) Fields() map[string]any {
	fields := map[string]any{
		FieldType:        string(t.Type),
		FieldDescription: t.Description,
		FieldCategory:    t.Category,
		FieldBranch:      t.Branch,
		FieldWorkerName:  t.WorkerName,
		FieldPieces:      t.Pieces,
	}
	if t.HasDate() {
		fields[FieldDate] = t.Date.UTC()
	}
	if t.Amount.Valid {
		fields[FieldAmount] = t.Amount.Decimal
	}
	if t.GrossProfit.Valid {
		fields[FieldGrossProfit] = t.GrossProfit.Decimal
	}
	if t.NetProfit.Valid {
		fields[FieldNetProfit] = t.NetProfit.Decimal
	}
	if t.SyncStatus != "" {
		fields[FieldSyncStatus] = t.SyncStatus
	}
	return fields
}

// SummaryUpsert is one planned merge-write produced by a sync run.
type SummaryUpsert struct {
	ID          string          `json:"id"`
	Day         string          `json:"day"`
	Date        time.Time       `json:"date"`
	Branch      string          `json:"branch"`
	WorkerName  string          `json:"worker_name"`
	Amount      decimal.Decimal `json:"amount"`
	Pieces      int             `json:"pieces"`
	SizeCounts  []SizeCount     `json:"size_counts"`
	Description string          `json:"description"`
	Entries     int             `json:"entries"`
}

type SizeCount struct {
	Size   string `json:"size"`
	Pieces int    `json:"pieces"`
}

type Purchase struct {
	ID              string                     `json:"id"`
	Date            time.Time                  `json:"date"`
	Vendor          string                     `json:"vendor"`
	TotalKg         decimal.Decimal            `json:"total_kg"`
	TotalCost       decimal.Decimal            `json:"total_cost"`
	TransportCost   decimal.Decimal            `json:"transport_cost"`
	GST             decimal.Decimal            `json:"gst"`
	SheetWeights    map[string]decimal.Decimal `json:"sheet_weights"`
	EstimatedSheets map[string]int64           `json:"estimated_sheets"`
	AvgCostPerKg    decimal.Decimal            `json:"avg_cost_per_kg"`
	BillPhotoRef    string                     `json:"bill_photo_ref"`
	CreatedBy       string                     `json:"created_by"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// Role ids seeded by every store.
const (
	AdminRoleID  = "role-admin"
	WorkerRoleID = "role-worker"
)

type UserAccount struct {
	ID        string
	Email     string
	Password  string
	RoleID    string
	Active    bool
	CreatedAt time.Time
}

type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Actor is the authenticated principal attached to a request.
type Actor struct {
	UserID string
	Email  string
}

type AuditLog struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Collection string    `json:"collection"`
	DocID      string    `json:"doc_id"`
	UserID     string    `json:"user_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionSync   = "sync"
)
