package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
)

var (
	// ErrDoctorNotFound indicates no profile matched the lookup.
	ErrDoctorNotFound = errors.New("doctor not found")
	// ErrDoctorConflict indicates the email, license, or user already owns a profile.
	ErrDoctorConflict = errors.New("doctor profile conflicts with an existing one")
	// ErrNotDoctorAccount indicates the target account does not carry the DOCTOR role.
	ErrNotDoctorAccount = errors.New("account is not a doctor account")
)

// DoctorService manages the professional directory and profile lifecycle.
type DoctorService interface {
	List(ctx context.Context, query dto.DoctorListQuery) (dto.DoctorListResponse, error)
	Get(ctx context.Context, id uint, public bool) (dto.DoctorResponse, error)
	GetProfile(ctx context.Context, userID uint) (dto.DoctorResponse, error)
	CreateProfile(ctx context.Context, userID uint, req dto.DoctorCreateRequest) (dto.DoctorResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req dto.DoctorUpdateRequest) (dto.DoctorResponse, error)
	Rate(ctx context.Context, doctorID uint, req dto.DoctorRateRequest) (dto.DoctorRating, error)
	Verify(ctx context.Context, doctorID uint, req dto.DoctorVerifyRequest) (dto.DoctorResponse, error)
	ListPending(ctx context.Context) ([]dto.DoctorResponse, error)
	Specializations(ctx context.Context) ([]string, error)
	Departments(ctx context.Context) ([]string, error)
}

type doctorService struct {
	doctors   repository.DoctorRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewDoctorService constructs a doctor service.
func NewDoctorService(doctors repository.DoctorRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) DoctorService {
	return &doctorService{
		doctors:   doctors,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "doctor_service").Logger(),
	}
}

func (s *doctorService) List(ctx context.Context, query dto.DoctorListQuery) (dto.DoctorListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.DoctorListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = 10
	}

	doctors, total, err := s.doctors.List(ctx, repository.DoctorFilter{
		Specialization: query.Specialization,
		Department:     query.Department,
		Search:         query.Search,
		Page:           page,
		PageSize:       pageSize,
	})
	if err != nil {
		return dto.DoctorListResponse{}, err
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}

	return dto.DoctorListResponse{
		Doctors:     dto.NewDoctorResponseSlice(doctors, true),
		TotalPages:  totalPages,
		CurrentPage: page,
		Total:       total,
	}, nil
}

func (s *doctorService) Get(ctx context.Context, id uint, public bool) (dto.DoctorResponse, error) {
	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DoctorResponse{}, ErrDoctorNotFound
		}
		return dto.DoctorResponse{}, err
	}
	return dto.NewDoctorResponse(doctor, public), nil
}

func (s *doctorService) GetProfile(ctx context.Context, userID uint) (dto.DoctorResponse, error) {
	doctor, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DoctorResponse{}, ErrDoctorNotFound
		}
		return dto.DoctorResponse{}, err
	}
	return dto.NewDoctorResponse(doctor, false), nil
}

func (s *doctorService) CreateProfile(ctx context.Context, userID uint, req dto.DoctorCreateRequest) (dto.DoctorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DoctorResponse{}, err
	}

	if _, err := s.users.GetByIDAndRole(ctx, userID, models.RoleDoctor); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DoctorResponse{}, ErrNotDoctorAccount
		}
		return dto.DoctorResponse{}, err
	}

	doctor := models.Doctor{
		UserID:               userID,
		FullName:             req.FullName,
		Email:                strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:                req.Phone,
		DateOfBirth:          req.DateOfBirth,
		Gender:               req.Gender,
		MedicalLicenseNumber: strings.TrimSpace(req.MedicalLicenseNumber),
		Specializations:      encodeJSON(req.Specializations),
		Department:           req.Department,
		YearsOfExperience:    req.YearsOfExperience,
		Education:            encodeJSON(req.Education),
		HospitalName:         req.HospitalName,
		HospitalAddress:      req.HospitalAddress,
		WorkSchedule:         encodeJSON(req.WorkSchedule),
		ConsultationFee:      req.ConsultationFee,
		Bio:                  req.Bio,
		Languages:            encodeJSON(req.Languages),
		Status:               models.DoctorStatusPendingVerification,
		VerificationStatus:   models.VerificationPending,
	}

	if err := s.doctors.Create(ctx, &doctor); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.DoctorResponse{}, ErrDoctorConflict
		}
		return dto.DoctorResponse{}, err
	}

	s.logger.Info().Uint("doctor_id", doctor.ID).Uint("user_id", userID).Msg("doctor profile created")

	return dto.NewDoctorResponse(doctor, false), nil
}

func (s *doctorService) UpdateProfile(ctx context.Context, userID uint, req dto.DoctorUpdateRequest) (dto.DoctorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DoctorResponse{}, err
	}

	doctor, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DoctorResponse{}, ErrDoctorNotFound
		}
		return dto.DoctorResponse{}, err
	}

	if req.FullName != nil {
		doctor.FullName = *req.FullName
	}
	if req.Email != nil {
		doctor.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		doctor.Phone = *req.Phone
	}
	if req.DateOfBirth != nil {
		doctor.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		doctor.Gender = *req.Gender
	}
	if len(req.Specializations) > 0 {
		doctor.Specializations = encodeJSON(req.Specializations)
	}
	if req.Department != nil {
		doctor.Department = *req.Department
	}
	if req.YearsOfExperience != nil {
		doctor.YearsOfExperience = *req.YearsOfExperience
	}
	if len(req.Education) > 0 {
		doctor.Education = encodeJSON(req.Education)
	}
	if req.HospitalName != nil {
		doctor.HospitalName = *req.HospitalName
	}
	if req.HospitalAddress != nil {
		doctor.HospitalAddress = *req.HospitalAddress
	}
	if len(req.WorkSchedule) > 0 {
		doctor.WorkSchedule = encodeJSON(req.WorkSchedule)
	}
	if req.ConsultationFee != nil {
		doctor.ConsultationFee = *req.ConsultationFee
	}
	if req.Bio != nil {
		doctor.Bio = *req.Bio
	}
	if len(req.Languages) > 0 {
		doctor.Languages = encodeJSON(req.Languages)
	}
	if req.ProfilePicture != nil {
		doctor.ProfilePicture = *req.ProfilePicture
	}

	if err := s.doctors.Update(ctx, &doctor); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.DoctorResponse{}, ErrDoctorConflict
		}
		return dto.DoctorResponse{}, err
	}

	return dto.NewDoctorResponse(doctor, false), nil
}

func (s *doctorService) Rate(ctx context.Context, doctorID uint, req dto.DoctorRateRequest) (dto.DoctorRating, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DoctorRating{}, err
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DoctorRating{}, ErrDoctorNotFound
		}
		return dto.DoctorRating{}, err
	}

	doctor.ApplyRating(req.Rating)
	if err := s.doctors.Update(ctx, &doctor); err != nil {
		return dto.DoctorRating{}, err
	}

	return dto.DoctorRating{Average: doctor.RatingAverage, Count: doctor.RatingCount}, nil
}

func (s *doctorService) Verify(ctx context.Context, doctorID uint, req dto.DoctorVerifyRequest) (dto.DoctorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DoctorResponse{}, err
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DoctorResponse{}, ErrDoctorNotFound
		}
		return dto.DoctorResponse{}, err
	}

	doctor.VerificationStatus = req.Status
	switch req.Status {
	case models.VerificationVerified:
		now := time.Now().UTC()
		doctor.Status = models.DoctorStatusActive
		doctor.VerifiedAt = &now
	case models.VerificationRejected:
		doctor.Status = models.DoctorStatusInactive
		doctor.VerifiedAt = nil
	}

	if err := s.doctors.Update(ctx, &doctor); err != nil {
		return dto.DoctorResponse{}, err
	}

	s.logger.Info().
		Uint("doctor_id", doctor.ID).
		Str("verification_status", doctor.VerificationStatus).
		Str("status", doctor.Status).
		Msg("doctor verification resolved")

	return dto.NewDoctorResponse(doctor, false), nil
}

func (s *doctorService) ListPending(ctx context.Context) ([]dto.DoctorResponse, error) {
	doctors, err := s.doctors.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewDoctorResponseSlice(doctors, false), nil
}

func (s *doctorService) Specializations(ctx context.Context) ([]string, error) {
	doctors, err := s.doctors.ListChatable(ctx, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var specializations []string
	for _, doctor := range doctors {
		for _, value := range decodeSpecializations(doctor) {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			specializations = append(specializations, value)
		}
	}
	sort.Strings(specializations)
	return specializations, nil
}

func (s *doctorService) Departments(ctx context.Context) ([]string, error) {
	return s.doctors.Departments(ctx)
}

func decodeSpecializations(doctor models.Doctor) []string {
	if len(doctor.Specializations) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(doctor.Specializations, &values); err != nil {
		return nil
	}
	return values
}

func encodeJSON(value interface{}) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
