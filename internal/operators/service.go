package operators

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/auth"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db"
	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/security"
)

// Service manages staff accounts and their sessions.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	CreateOperator(ctx context.Context, input CreateOperatorInput) (*models.Operator, error)
	// EnsureBootstrapAdmin seeds the first admin from config when the table
	// is empty. Called once at api startup.
	EnsureBootstrapAdmin(ctx context.Context) error
}

type service struct {
	jwtCfg       config.JWTConfig
	passwordCfg  config.PasswordConfig
	bootstrapCfg config.BootstrapConfig
	repo         Repository
	logg         *logger.Logger
	now          func() time.Time
}

// Deps bundles the operators service dependencies.
type Deps struct {
	JWT       config.JWTConfig
	Password  config.PasswordConfig
	Bootstrap config.BootstrapConfig
	Repo      Repository
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewService wires the operators service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("operators repository required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		jwtCfg:       deps.JWT,
		passwordCfg:  deps.Password,
		bootstrapCfg: deps.Bootstrap,
		repo:         deps.Repo,
		logg:         deps.Logger,
		now:          now,
	}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if input.Login == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "login and password required")
	}

	operator, err := s.repo.FindByLogin(ctx, input.Login)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Indistinguishable from a bad password on purpose.
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load operator")
	}
	if !operator.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(input.Password, operator.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	issuedAt := s.now()
	token, err := auth.MintAccessToken(s.jwtCfg, issuedAt, auth.AccessTokenPayload{
		OperatorID: operator.ID,
		Role:       operator.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	s.logg.Info(s.logg.WithOperatorID(ctx, operator.ID.String()), "operator logged in")
	return &LoginResult{
		Token:       token,
		ExpiresAt:   issuedAt.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
		OperatorID:  operator.ID.String(),
		DisplayName: operator.DisplayName,
		Role:        operator.Role,
	}, nil
}

func (s *service) CreateOperator(ctx context.Context, input CreateOperatorInput) (*models.Operator, error) {
	switch {
	case input.Login == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "login required")
	case input.Password == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password required")
	case input.DisplayName == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	case !input.Role.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown operator role %q", input.Role))
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	operator := &models.Operator{
		ID:           uuid.New(),
		Login:        input.Login,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		Role:         input.Role,
		Scopes:       pq.StringArray(input.Scopes),
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, operator); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("operator login %q already taken", input.Login))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create operator")
	}

	s.logg.Info(s.logg.WithOperatorID(ctx, operator.ID.String()),
		fmt.Sprintf("operator account created with role %s", operator.Role))
	return operator, nil
}

func (s *service) EnsureBootstrapAdmin(ctx context.Context) error {
	if s.bootstrapCfg.AdminLogin == "" || s.bootstrapCfg.AdminPassword == "" {
		return nil
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count operators")
	}
	if count > 0 {
		return nil
	}

	_, err = s.CreateOperator(ctx, CreateOperatorInput{
		Login:       s.bootstrapCfg.AdminLogin,
		Password:    s.bootstrapCfg.AdminPassword,
		DisplayName: "Bootstrap Admin",
		Role:        enums.OperatorRoleAdmin,
	})
	if err != nil {
		// A concurrent replica may have won the race; that admin serves
		// just as well.
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeConflict {
			return nil
		}
		return err
	}
	s.logg.Warn(ctx, "bootstrap admin seeded from environment, rotate the password")
	return nil
}
