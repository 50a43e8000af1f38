package api

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

// Build wires repositories, services and the audit log from cfg.
func Build(cfg *config.Config, logger *zap.Logger) (*Commands, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher, err := auth.NewHasher(cfg.Auth.PasswordScheme, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTLMinutes)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}

	userRepo := repository.NewUserRepository(cfg.Storage.UsersPath(), logger)
	ticketRepo := repository.NewTicketRepository(cfg.Storage.TicketsPath(), logger)

	auditLog := audit.NewFileLog(cfg.Storage.AuditPath(), logger.Named("audit"))
	recorder := audit.NewRecorder(auditLog, logger)
	authorizer := auth.NewAuthorizer(tokens)

	dispatcher := events.NewInMemoryDispatcher(logger)
	notificationService := service.NewNotificationService(dispatcher, logger.Named("notifications"))
	worker.StartNotificationWorker(notificationService)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     userRepo,
		Hasher:       hasher,
		TokenManager: tokens,
		Authorizer:   authorizer,
		Audit:        recorder,
		Logger:       logger.Named("auth"),
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Authorizer: authorizer,
		Audit:      recorder,
		Dispatcher: dispatcher,
		Logger:     logger.Named("tickets"),
	})

	return NewCommands(Dependencies{
		AuthService:         authService,
		TicketService:       ticketService,
		DemoService:         service.NewDemoService(recorder),
		NotificationService: notificationService,
		Authorizer:          authorizer,
		Audit:               recorder,
		AuditPath:           auditLog.Path(),
		Logger:              logger,
	}), nil
}
