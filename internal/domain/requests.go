package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	IsAdmin     bool   `json:"is_admin"`
	ExpiresAt   string `json:"expires_at"`
}

type MeResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

type SalesEntryRequest struct {
	Date       time.Time       `json:"date" validate:"required"`
	Size       string          `json:"size" validate:"required"`
	OtherSize  string          `json:"other_size" validate:"required_if=Size other"`
	Pieces     int             `json:"pieces" validate:"min=1"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Branch     string          `json:"branch" validate:"required"`
	WorkerName string          `json:"worker_name" validate:"required"`
}

type SheetWeights struct {
	Size18x24 decimal.Decimal `json:"18x24" validate:"gt=0"`
	Size24x30 decimal.Decimal `json:"24x30" validate:"gt=0"`
	Size30x40 decimal.Decimal `json:"30x40" validate:"gt=0"`
}

func (w SheetWeights) Map() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		Size18x24: w.Size18x24,
		Size24x30: w.Size24x30,
		Size30x40: w.Size30x40,
	}
}

type PurchaseRequest struct {
	Date          time.Time       `json:"date" validate:"required"`
	Vendor        string          `json:"vendor" validate:"required"`
	TotalKg       decimal.Decimal `json:"total_kg" validate:"gt=0"`
	TotalCost     decimal.Decimal `json:"total_cost" validate:"gt=0"`
	TransportCost decimal.Decimal `json:"transport_cost" validate:"gte=0"`
	GST           decimal.Decimal `json:"gst" validate:"gte=0"`
	SheetWeights  SheetWeights    `json:"sheet_weights"`
	// BillPhoto is the raw image, base64 encoded in JSON.
	BillPhoto []byte `json:"bill_photo" validate:"required,min=1"`
}

type TransactionRequest struct {
	Date        time.Time       `json:"date" validate:"required"`
	Type        string          `json:"type" validate:"required,oneof=sale purchase expense"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Category    string          `json:"category" validate:"required"`
	Description string          `json:"description" validate:"required"`
}

type SyncResponse struct {
	Day           string          `json:"day"`
	NothingToSync bool            `json:"nothing_to_sync"`
	Upserts       []SummaryUpsert `json:"upserts"`
	Entries       int             `json:"entries"`
}

type CategorySuggestionRequest struct {
	TransactionDetails string `json:"transaction_details"`
}

type CategorySuggestion struct {
	Category   TransactionType `json:"category"`
	Confidence float64         `json:"confidence"`
}

type DayTotals struct {
	Sales     decimal.Decimal `json:"sales"`
	Expenses  decimal.Decimal `json:"expenses"`
	Purchases decimal.Decimal `json:"purchases"`
}

type DailySummaryResponse struct {
	Day     string    `json:"day"`
	Totals  DayTotals `json:"totals"`
	Summary string    `json:"summary"`
}

type UserCreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

// UserView is a user account without its password hash.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	RoleID    string    `json:"role_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
