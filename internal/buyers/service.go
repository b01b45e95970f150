package buyers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/auth"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/security"
)

const minPasswordLength = 8

// RegisterInput is the signup payload.
type RegisterInput struct {
	Name     string          `json:"name" validate:"required,min=2,max=200"`
	Email    string          `json:"email" validate:"required,email"`
	CPF      string          `json:"cpf" validate:"required"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     enums.ActorRole `json:"role" validate:"omitempty,oneof=buyer organizer"`
}

// LoginInput is the credential payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a freshly minted access token plus its owner.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Buyer     *models.Buyer
}

// Service handles account registration and credential auth.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Buyer, error)
	Login(ctx context.Context, input LoginInput) (*Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error)
}

type service struct {
	repo     Repository
	jwtCfg   config.JWTConfig
	passwCfg config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, jwtCfg config.JWTConfig, passwCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("buyers repository is required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &service{
		repo:     repo,
		jwtCfg:   jwtCfg,
		passwCfg: passwCfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Buyer, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	cpf, err := normalizeCPF(input.CPF)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = enums.RoleBuyer
	}
	if role != enums.RoleBuyer && role != enums.RoleOrganizer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer or organizer")
	}

	hash, err := security.HashPassword(input.Password, s.passwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	buyer := &models.Buyer{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		CPF:          cpf,
		PasswordHash: hash,
		Role:         role,
	}
	created, err := s.repo.Create(ctx, buyer)
	if err != nil {
		if db.IsUniqueViolation(err, "ux_buyers_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email is already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating account")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithBuyerID(ctx, created.ID.String()), "account registered")
	}
	return created, nil
}

// Login verifies credentials and mints an access token. Unknown email and
// wrong password return the same error so accounts cannot be enumerated.
func (s *service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	buyer, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading account")
	}

	match, err := security.VerifyPassword(input.Password, buyer.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		BuyerID: buyer.ID,
		Role:    buyer.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &Session{
		Token:     token,
		ExpiresAt: now.Add(s.jwtCfg.AccessTokenTTL()),
		Buyer:     buyer,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	buyer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading account")
	}
	return buyer, nil
}

// normalizeCPF strips formatting and keeps the 11-digit document.
func normalizeCPF(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cpf := digits.String()
	if len(cpf) != 11 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cpf must have 11 digits")
	}
	return cpf, nil
}
