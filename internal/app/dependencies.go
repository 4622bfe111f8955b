package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/sharecal/internal/auth"
	"github.com/klokku/sharecal/internal/config"
	"github.com/klokku/sharecal/internal/event_bus"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/audit"
	"github.com/klokku/sharecal/pkg/conflict"
	"github.com/klokku/sharecal/pkg/event"
	"github.com/klokku/sharecal/pkg/notification"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/recurrence"
	"github.com/klokku/sharecal/pkg/user"
	"github.com/klokku/sharecal/pkg/version"
	"github.com/redis/go-redis/v9"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	AuthTokenValidator auth.TokenValidator
	Clock              utils.Clock
	EventBus           *event_bus.EventBus
	Redis              *redis.Client

	UserService user.Service
	UserHandler *user.Handler

	PermissionRepo     permission.Repository
	PermissionResolver *permission.Resolver

	VersionRepo  version.Repository
	VersionStore *version.Store

	EventRepo        event.Repository
	ConflictDetector *conflict.Detector
	EventService     *event.ServiceImpl
	EventHandler     *event.Handler

	Notifications *notification.Dispatcher

	// AuditRepo is nil when request auditing is disabled.
	AuditRepo    audit.Repository
	AuditHandler *audit.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.AuthTokenValidator = auth.NewTokenValidator(cfg.Auth.JwtSecret)
	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	auditRepo := audit.NewRepository(db)
	if cfg.Audit.Enabled {
		deps.AuditRepo = auditRepo
	}
	deps.AuditHandler = audit.NewHandler(auditRepo)

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.EventRepo = event.NewRepository(db)
	deps.PermissionRepo = permission.NewRepository(db)
	deps.PermissionResolver = permission.NewResolver(deps.PermissionRepo, deps.EventRepo, deps.Clock)

	deps.VersionRepo = version.NewRepository(db)
	deps.VersionStore = version.NewStore(deps.VersionRepo, deps.PermissionResolver, deps.Clock)

	scheduling := cfg.Scheduling
	deps.ConflictDetector = conflict.NewDetector(
		event.NewScheduleLister(deps.EventRepo),
		deps.PermissionResolver,
		recurrence.NewExpander(scheduling.MaxOccurrences),
		time.Duration(scheduling.ConflictHorizonDays)*24*time.Hour,
		scheduling.ExpansionWorkers,
	)
	deps.EventService = event.NewService(
		deps.EventRepo,
		deps.VersionStore,
		deps.PermissionResolver,
		deps.ConflictDetector,
		deps.UserService,
		deps.EventBus,
		deps.Clock,
		scheduling.MaxBatchSize,
	)
	deps.EventHandler = event.NewHandler(deps.EventService)

	var publisher notification.Publisher = notification.LogPublisher{}
	deps.Redis = notification.Connect(ctx, cfg.Redis)
	if deps.Redis != nil {
		publisher = notification.NewRedisPublisher(deps.Redis)
	}
	deps.Notifications = notification.NewDispatcher(publisher, cfg.Redis.ChannelPrefix)
	deps.Notifications.Register(deps.EventBus)

	return deps
}
