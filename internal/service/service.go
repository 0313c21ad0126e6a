package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"tarpaulin/backend/internal/access"
	"tarpaulin/backend/internal/assist"
	"tarpaulin/backend/internal/billphoto"
	"tarpaulin/backend/internal/cache"
	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/lock"
	"tarpaulin/backend/internal/rollup"
	"tarpaulin/backend/internal/store"
	"tarpaulin/backend/internal/xid"
)

var (
	ErrAdminRequired = errors.New("admin role required")
	ErrUnauthorized  = errors.New("sign-in required")
)

const dashboardCacheKey = "snapshot"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Deps struct {
	Repo      store.Repository
	Access    *access.Resolver
	Sync      *rollup.Engine
	Cache     cache.DashboardCache
	Assistant assist.Client
	Photos    *billphoto.Uploader
	Logger    logrus.FieldLogger
}

type Options struct {
	Location     *time.Location
	WeekStart    time.Weekday
	DashboardTTL time.Duration
	Now          func() time.Time
}

type Service struct {
	repo      store.Repository
	access    *access.Resolver
	sync      *rollup.Engine
	cache     cache.DashboardCache
	assistant assist.Client
	photos    *billphoto.Uploader
	logger    logrus.FieldLogger
	validate  *validator.Validate

	loc          *time.Location
	weekStart    time.Weekday
	dashboardTTL time.Duration
	now          func() time.Time
}

func New(deps Deps, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Access == nil {
		deps.Access = access.NewResolver(deps.Repo, "")
	}
	if deps.Sync == nil {
		deps.Sync = rollup.NewEngine(deps.Repo, lock.NewLocal(), deps.Logger, opts.Location)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopDashboardCache{}
	}
	if deps.Assistant == nil {
		deps.Assistant = assist.Noop{}
	}
	if deps.Photos == nil {
		deps.Photos = billphoto.NewUploader(billphoto.NewLocalStore(filepath.Join(os.TempDir(), "tarpaulin-bills")))
	}

	return &Service{
		repo:         deps.Repo,
		access:       deps.Access,
		sync:         deps.Sync,
		cache:        deps.Cache,
		assistant:    deps.Assistant,
		photos:       deps.Photos,
		logger:       deps.Logger.WithField("module", "service"),
		validate:     newValidator(),
		loc:          opts.Location,
		weekStart:    opts.WeekStart,
		dashboardTTL: opts.DashboardTTL,
		now:          opts.Now,
	}
}

// Location is the business time zone used for day, week and month bounds.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

// Me describes the signed-in user.
func (s *Service) Me(ctx context.Context) (domain.MeResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.MeResponse{}, ErrUnauthorized
	}
	acc, err := s.access.Resolve(ctx, actor.UserID)
	if err != nil {
		return domain.MeResponse{}, err
	}
	return domain.MeResponse{UserID: actor.UserID, Email: actor.Email, IsAdmin: acc.IsAdmin}, nil
}

func (s *Service) isAdmin(ctx context.Context) (bool, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return false, nil
	}
	acc, err := s.access.Resolve(ctx, actor.UserID)
	if err != nil {
		return false, err
	}
	return acc.IsAdmin, nil
}

func (s *Service) RequireAdmin(ctx context.Context) error {
	ok, err := s.isAdmin(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminRequired
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, collection string, docID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserID: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Action:     action,
		Collection: collection,
		DocID:      docID,
		UserID:     actor.UserID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		s.logger.WithFields(logrus.Fields{
			"func":       "logAudit",
			"action":     action,
			"collection": collection,
			"doc_id":     docID,
		}).WithError(err).Warn("failed to write audit log")
	}
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.WithField("func", "invalidateDashboard").WithError(err).Warn("failed to invalidate dashboard cache")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

// notFuture rejects dates after the end of today in the business time zone.
func (s *Service) notFuture(field string, at time.Time, verr *domain.ValidationError) {
	if at.IsZero() {
		return
	}
	today := s.localNow()
	endOfToday := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 999999999, s.loc)
	if at.After(endOfToday) {
		verr.Add(field, "must not be in the future")
	}
}
