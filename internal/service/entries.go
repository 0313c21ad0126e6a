package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/money"
	"tarpaulin/backend/internal/xid"
)

func (s *Service) CreateSalesEntry(ctx context.Context, req domain.SalesEntryRequest) (*domain.SalesEntry, error) {
	req.Size = strings.TrimSpace(req.Size)
	req.OtherSize = strings.TrimSpace(req.OtherSize)
	req.Branch = strings.TrimSpace(req.Branch)
	req.WorkerName = strings.TrimSpace(req.WorkerName)

	verr := &domain.ValidationError{}
	s.check(req, verr)
	s.notFuture("date", req.Date, verr)
	if !verr.Empty() {
		return nil, verr
	}

	size := req.Size
	if size == domain.SizeOther {
		size = req.OtherSize
	}
	actor, _ := ActorFromContext(ctx)

	created, err := s.repo.CreateSalesEntry(ctx, domain.SalesEntry{
		ID:         xid.New("entry"),
		Date:       req.Date,
		Size:       size,
		Pieces:     req.Pieces,
		Amount:     req.Amount,
		Branch:     req.Branch,
		WorkerName: req.WorkerName,
		CreatedBy:  actor.UserID,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save sales entry: %w", err)
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, domain.AuditActionCreate, "sales_entries", created.ID,
		fmt.Sprintf("%s / %s: %d x %s", created.Branch, created.WorkerName, created.Pieces, created.Size))
	return created, nil
}

func (s *Service) ListSalesEntries(ctx context.Context, limit int) ([]domain.SalesEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSalesEntries(ctx, limit)
}

// CreatePurchase stores a supplier purchase with the bill photo and the
// number of sheets each size would yield from the bought weight.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (*domain.Purchase, error) {
	req.Vendor = strings.TrimSpace(req.Vendor)

	verr := &domain.ValidationError{}
	s.check(req, verr)
	s.notFuture("date", req.Date, verr)
	if !verr.Empty() {
		return nil, verr
	}

	purchaseID := xid.New("purchase")
	ref, err := s.photos.Upload(ctx, purchaseID, req.BillPhoto)
	if err != nil {
		verr.Add("bill_photo", "must be a JPEG or PNG image")
		s.logger.WithFields(logrus.Fields{
			"func":        "CreatePurchase",
			"purchase_id": purchaseID,
		}).WithError(err).Warn("bill photo rejected")
		return nil, verr
	}

	weights := req.SheetWeights.Map()
	actor, _ := ActorFromContext(ctx)
	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		ID:              purchaseID,
		Date:            req.Date,
		Vendor:          req.Vendor,
		TotalKg:         req.TotalKg,
		TotalCost:       req.TotalCost,
		TransportCost:   req.TransportCost,
		GST:             req.GST,
		SheetWeights:    weights,
		EstimatedSheets: EstimateSheets(req.TotalKg, weights),
		AvgCostPerKg:    AvgCostPerKg(money.Sum(req.TotalCost, req.TransportCost, req.GST), req.TotalKg),
		BillPhotoRef:    ref,
		CreatedBy:       actor.UserID,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save purchase: %w", err)
	}

	s.logAudit(ctx, domain.AuditActionCreate, "purchases", created.ID,
		fmt.Sprintf("%s: %s kg for %s", created.Vendor, created.TotalKg.String(), money.FormatINR(created.TotalCost)))
	return created, nil
}

// EstimateSheets returns floor(totalKg / weight) for each size with a
// positive weight.
func EstimateSheets(totalKg decimal.Decimal, weights map[string]decimal.Decimal) map[string]int64 {
	result := make(map[string]int64, len(weights))
	for size, weight := range weights {
		if !weight.IsPositive() {
			continue
		}
		result[size] = totalKg.Div(weight).Floor().IntPart()
	}
	return result
}

// AvgCostPerKg is the landed cost (bill total, transport and GST) per kg.
func AvgCostPerKg(landedCost decimal.Decimal, totalKg decimal.Decimal) decimal.Decimal {
	if !totalKg.IsPositive() {
		return decimal.Zero
	}
	return landedCost.DivRound(totalKg, 2)
}

func (s *Service) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListPurchases(ctx, limit)
}

// PutTransaction writes a manual ledger line. The document id is the local
// calendar day of the date, so a second entry on the same day replaces the
// first.
func (s *Service) PutTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.Transaction, error) {
	if err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)

	verr := &domain.ValidationError{}
	s.check(req, verr)
	s.notFuture("date", req.Date, verr)
	if !verr.Empty() {
		return nil, verr
	}

	tx := domain.Transaction{
		ID:          money.DayKey(req.Date.In(s.loc)),
		Date:        req.Date,
		Type:        domain.TransactionType(req.Type),
		Description: req.Description,
		Category:    req.Category,
		Amount:      decimal.NewNullDecimal(req.Amount),
		SyncStatus:  domain.SyncStatusSynced,
	}
	if err := s.repo.PutTransaction(ctx, tx.ID, tx.Fields()); err != nil {
		return nil, fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, domain.AuditActionUpdate, "transactions", tx.ID,
		fmt.Sprintf("%s %s", tx.Type, money.FormatINR(req.Amount)))
	return &tx, nil
}

func (s *Service) ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit < 1 || limit > 200 {
		limit = 20
	}
	return s.repo.ListRecentTransactions(ctx, limit)
}
