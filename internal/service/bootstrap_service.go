package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/logger"
)

type bootstrapRepository interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	Create(ctx context.Context, user *models.User) error
	GrantRole(ctx context.Context, grant *models.UserRoleGrant) error
	Delete(ctx context.Context, id string) error
}

// BootstrapConfig configures the admin bootstrap flow.
type BootstrapConfig struct {
	ServiceRoleKey string
	DefaultName    string
}

// BootstrapService creates the first administrative account of a deployment.
//
// The admin-exists check and the inserts are not atomic: two concurrent calls can
// both pass the check. No lock is taken.
type BootstrapService struct {
	repo      bootstrapRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    BootstrapConfig
}

// NewBootstrapService constructs a BootstrapService.
func NewBootstrapService(repo bootstrapRepository, validate *validator.Validate, logger *zap.Logger, config BootstrapConfig) *BootstrapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if strings.TrimSpace(config.DefaultName) == "" {
		config.DefaultName = "Administrator"
	}
	return &BootstrapService{repo: repo, validator: validate, logger: logger, config: config}
}

// BootstrapAdmin creates an admin identity and its role grant. If the grant fails
// the identity is deleted again so no privilege-less account is left behind.
func (s *BootstrapService) BootstrapAdmin(ctx context.Context, req models.BootstrapAdminRequest) (*models.User, error) {
	if s.config.ServiceRoleKey == "" {
		return nil, appErrors.Clone(appErrors.ErrMisconfigured, "service credential is not configured")
	}

	log := logger.WithContext(ctx, s.logger)

	admins, err := s.repo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing admins")
	}
	if admins > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admin already exists")
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	name := strings.TrimSpace(req.FullName)
	if name == "" {
		name = s.config.DefaultName
	}

	user := &models.User{
		Email:          req.Email,
		PasswordHash:   string(hash),
		FullName:       name,
		Active:         true,
		EmailConfirmed: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		log.Warn("bootstrap admin identity creation failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.repo.GrantRole(ctx, &models.UserRoleGrant{UserID: user.ID, Role: models.RoleAdmin}); err != nil {
		log.Error("bootstrap admin role grant failed, removing identity", zap.String("user_id", user.ID), zap.Error(err))
		if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
			log.Error("failed to remove orphaned admin identity", zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrCompensationFailure.Code, appErrors.ErrCompensationFailure.Status, appErrors.ErrCompensationFailure.Message)
	}

	user.Role = models.RoleAdmin
	log.Info("bootstrap admin created", zap.String("user_id", user.ID))
	return user, nil
}
