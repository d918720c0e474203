package models

import (
	"time"

	"gorm.io/datatypes"
)

// Doctor lifecycle states.
const (
	DoctorStatusActive              = "ACTIVE"
	DoctorStatusInactive            = "INACTIVE"
	DoctorStatusSuspended           = "SUSPENDED"
	DoctorStatusPendingVerification = "PENDING_VERIFICATION"

	VerificationPending  = "PENDING"
	VerificationVerified = "VERIFIED"
	VerificationRejected = "REJECTED"
)

// Doctor holds the professional profile attached one-to-one to a user account.
// A doctor is only discoverable and chatable while ACTIVE and VERIFIED.
type Doctor struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UserID               uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName             string         `gorm:"size:255;not null" json:"full_name"`
	Email                string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone                string         `gorm:"size:32;not null" json:"phone"`
	DateOfBirth          *time.Time     `json:"date_of_birth,omitempty"`
	Gender               string         `gorm:"size:16" json:"gender,omitempty"`
	MedicalLicenseNumber string         `gorm:"size:64;uniqueIndex;not null" json:"medical_license_number,omitempty"`
	Specializations      datatypes.JSON `gorm:"type:json" json:"specializations"`
	Department           string         `gorm:"size:128;index;not null" json:"department"`
	YearsOfExperience    int            `json:"years_of_experience"`
	Education            datatypes.JSON `gorm:"type:json" json:"education,omitempty"`
	HospitalName         string         `gorm:"size:255;not null" json:"hospital_name"`
	HospitalAddress      string         `gorm:"size:512" json:"hospital_address,omitempty"`
	WorkSchedule         datatypes.JSON `gorm:"type:json" json:"work_schedule,omitempty"`
	ConsultationFee      float64        `json:"consultation_fee"`
	ProfilePicture       string         `gorm:"size:512" json:"profile_picture,omitempty"`
	Bio                  string         `gorm:"size:500" json:"bio,omitempty"`
	Languages            datatypes.JSON `gorm:"type:json" json:"languages,omitempty"`
	Status               string         `gorm:"size:32;index;not null;default:PENDING_VERIFICATION" json:"status"`
	VerificationStatus   string         `gorm:"size:16;index;not null;default:PENDING" json:"verification_status"`
	RatingAverage        float64        `gorm:"not null;default:0" json:"rating_average"`
	RatingCount          int64          `gorm:"not null;default:0" json:"rating_count"`
	TotalConsultations   int64          `gorm:"not null;default:0" json:"total_consultations"`
	VerifiedAt           *time.Time     `json:"verified_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// ApplyRating folds a new rating into the running average. The average is never
// recomputed from history, so an outlier stays in the aggregate permanently.
func (d *Doctor) ApplyRating(rating int) {
	total := d.RatingAverage*float64(d.RatingCount) + float64(rating)
	d.RatingCount++
	d.RatingAverage = total / float64(d.RatingCount)
}

// Chatable reports whether the doctor may appear in the directory and receive chats.
func (d *Doctor) Chatable() bool {
	return d.Status == DoctorStatusActive && d.VerificationStatus == VerificationVerified
}
