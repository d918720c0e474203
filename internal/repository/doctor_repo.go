package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

// DoctorFilter narrows the public doctor directory listing. Only ACTIVE and
// VERIFIED profiles are ever returned by List.
type DoctorFilter struct {
	Specialization string
	Department     string
	Search         string
	Page           int
	PageSize       int
}

// DoctorRepository provides access to doctor profiles.
type DoctorRepository interface {
	List(ctx context.Context, filter DoctorFilter) ([]models.Doctor, int64, error)
	ListChatable(ctx context.Context, excludeUserID uint) ([]models.Doctor, error)
	ListPending(ctx context.Context) ([]models.Doctor, error)
	Departments(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id uint) (models.Doctor, error)
	GetByUserID(ctx context.Context, userID uint) (models.Doctor, error)
	Create(ctx context.Context, doctor *models.Doctor) error
	Update(ctx context.Context, doctor *models.Doctor) error
}

type doctorRepository struct {
	db *gorm.DB
}

// NewDoctorRepository constructs a doctor repository backed by GORM.
func NewDoctorRepository(db *gorm.DB) DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) List(ctx context.Context, filter DoctorFilter) ([]models.Doctor, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	query := r.chatableQuery(ctx)

	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}
	if filter.Specialization != "" {
		// Specializations are stored as a JSON string array; a quoted LIKE
		// match works for both postgres json text and sqlite.
		query = query.Where("specializations LIKE ?", fmt.Sprintf("%%%q%%", filter.Specialization))
	}
	if filter.Search != "" {
		query = query.Where("LOWER(full_name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	var total int64
	if err := query.Model(&models.Doctor{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var doctors []models.Doctor
	err := query.
		Order("rating_average DESC, total_consultations DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&doctors).Error
	if err != nil {
		return nil, 0, err
	}

	return doctors, total, nil
}

func (r *doctorRepository) ListChatable(ctx context.Context, excludeUserID uint) ([]models.Doctor, error) {
	query := r.chatableQuery(ctx)
	if excludeUserID != 0 {
		query = query.Where("user_id <> ?", excludeUserID)
	}

	var doctors []models.Doctor
	if err := query.Find(&doctors).Error; err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *doctorRepository) ListPending(ctx context.Context) ([]models.Doctor, error) {
	var doctors []models.Doctor
	err := r.db.WithContext(ctx).
		Where("verification_status = ?", models.VerificationPending).
		Order("created_at ASC").
		Find(&doctors).Error
	if err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *doctorRepository) Departments(ctx context.Context) ([]string, error) {
	var departments []string
	err := r.chatableQuery(ctx).
		Model(&models.Doctor{}).
		Distinct().
		Order("department ASC").
		Pluck("department", &departments).Error
	if err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *doctorRepository) GetByID(ctx context.Context, id uint) (models.Doctor, error) {
	var doctor models.Doctor
	if err := r.db.WithContext(ctx).First(&doctor, id).Error; err != nil {
		return models.Doctor{}, err
	}
	return doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uint) (models.Doctor, error) {
	var doctor models.Doctor
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&doctor).Error; err != nil {
		return models.Doctor{}, err
	}
	return doctor, nil
}

func (r *doctorRepository) Create(ctx context.Context, doctor *models.Doctor) error {
	return r.db.WithContext(ctx).Create(doctor).Error
}

func (r *doctorRepository) Update(ctx context.Context, doctor *models.Doctor) error {
	return r.db.WithContext(ctx).Save(doctor).Error
}

func (r *doctorRepository) chatableQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("status = ?", models.DoctorStatusActive).
		Where("verification_status = ?", models.VerificationVerified)
}
