package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedUser is one account to provision. Password arrives in plaintext and is
// hashed before storage.
type SeedUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// SeedService provisions demo accounts for local and staging environments.
type SeedService interface {
	SeedUsers(ctx context.Context, token string, items []SeedUser) (int64, error)
}

type seedService struct {
	users   repository.UserRepository
	enabled bool
	token   string
	logger  zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:   users,
		enabled: enabled,
		token:   token,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedUsers(ctx context.Context, token string, items []SeedUser) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	var created int64
	for _, item := range items {
		username := strings.TrimSpace(item.Username)
		if username == "" || item.Password == "" {
			continue
		}

		role := strings.ToUpper(strings.TrimSpace(item.Role))
		switch role {
		case models.RoleAdmin, models.RoleDoctor:
		default:
			role = models.RoleUser
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(item.Password), bcrypt.DefaultCost)
		if err != nil {
			return created, err
		}

		user := models.User{
			Username: username,
			Password: string(hashed),
			Name:     item.Name,
			Phone:    item.Phone,
			Role:     role,
		}

		if err := s.users.Create(ctx, &user); err != nil {
			// Existing accounts keep their current credentials.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return created, err
		}
		created++
	}

	s.logger.Info().Int64("created", created).Msg("users seeded")
	return created, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
