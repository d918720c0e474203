package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
)

var (
	// ErrUsernameTaken indicates the requested username already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UserService manages account lifecycle and the chatable doctor directory.
type UserService interface {
	List(ctx context.Context) ([]dto.UserResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	Create(ctx context.Context, req dto.UserCreateRequest) (dto.UserResponse, error)
	Update(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, id uint) error
	ListChatableDoctors(ctx context.Context, currentUserID uint, currentRole string) ([]dto.ChatableDoctorResponse, error)
}

type userService struct {
	users     repository.UserRepository
	doctors   repository.DoctorRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs a user service.
func NewUserService(users repository.UserRepository, doctors repository.DoctorRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		doctors:   doctors,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Create(ctx context.Context, req dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Username: strings.TrimSpace(req.Username),
		Password: string(hashed),
		Name:     req.Name,
		Phone:    req.Phone,
		Avatar:   req.Avatar,
		Role:     role,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrUsernameTaken
		}
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user created")

	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, id uint) error {
	affected, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	s.logger.Info().Uint("user_id", id).Msg("user deleted")
	return nil
}

func (s *userService) ListChatableDoctors(ctx context.Context, currentUserID uint, currentRole string) ([]dto.ChatableDoctorResponse, error) {
	excludeUserID := uint(0)
	if strings.EqualFold(currentRole, models.RoleDoctor) {
		excludeUserID = currentUserID
	}

	doctors, err := s.doctors.ListChatable(ctx, excludeUserID)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.ChatableDoctorResponse, 0, len(doctors))
	for _, doctor := range doctors {
		entry := dto.ChatableDoctorResponse{
			UserID:          doctor.UserID,
			DoctorID:        doctor.ID,
			Name:            doctor.FullName,
			Role:            models.RoleDoctor,
			Specializations: decodeSpecializations(doctor),
			Department:      doctor.Department,
			HospitalName:    doctor.HospitalName,
			ProfilePicture:  doctor.ProfilePicture,
			Rating:          doctor.RatingAverage,
		}
		if account, err := s.users.GetByID(ctx, doctor.UserID); err == nil {
			entry.Username = account.Username
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
