package dto

import (
	"encoding/json"
	"time"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

// DoctorEducation describes a single education entry on a profile.
type DoctorEducation struct {
	Degree        string `json:"degree"`
	Institution   string `json:"institution"`
	YearGraduated int    `json:"year_graduated,omitempty"`
}

// DoctorWorkSlot describes one weekly availability window.
type DoctorWorkSlot struct {
	DayOfWeek   string `json:"day_of_week" validate:"omitempty,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

// DoctorCreateRequest is the payload for creating a doctor profile.
type DoctorCreateRequest struct {
	FullName             string            `json:"full_name" validate:"required,max=255"`
	Email                string            `json:"email" validate:"required,email,max=255"`
	Phone                string            `json:"phone" validate:"required,max=32"`
	DateOfBirth          *time.Time        `json:"date_of_birth"`
	Gender               string            `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	MedicalLicenseNumber string            `json:"medical_license_number" validate:"required,max=64"`
	Specializations      []string          `json:"specializations" validate:"required,min=1,dive,max=128"`
	Department           string            `json:"department" validate:"required,max=128"`
	YearsOfExperience    int               `json:"years_of_experience" validate:"omitempty,min=0"`
	Education            []DoctorEducation `json:"education"`
	HospitalName         string            `json:"hospital_name" validate:"required,max=255"`
	HospitalAddress      string            `json:"hospital_address" validate:"omitempty,max=512"`
	WorkSchedule         []DoctorWorkSlot  `json:"work_schedule" validate:"omitempty,dive"`
	ConsultationFee      float64           `json:"consultation_fee" validate:"omitempty,min=0"`
	Bio                  string            `json:"bio" validate:"omitempty,max=500"`
	Languages            []string          `json:"languages"`
}

// DoctorUpdateRequest updates an existing profile. License number is immutable.
type DoctorUpdateRequest struct {
	FullName          *string           `json:"full_name" validate:"omitempty,max=255"`
	Email             *string           `json:"email" validate:"omitempty,email,max=255"`
	Phone             *string           `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth       *time.Time        `json:"date_of_birth"`
	Gender            *string           `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	Specializations   []string          `json:"specializations" validate:"omitempty,min=1,dive,max=128"`
	Department        *string           `json:"department" validate:"omitempty,max=128"`
	YearsOfExperience *int              `json:"years_of_experience" validate:"omitempty,min=0"`
	Education         []DoctorEducation `json:"education"`
	HospitalName      *string           `json:"hospital_name" validate:"omitempty,max=255"`
	HospitalAddress   *string           `json:"hospital_address" validate:"omitempty,max=512"`
	WorkSchedule      []DoctorWorkSlot  `json:"work_schedule" validate:"omitempty,dive"`
	ConsultationFee   *float64          `json:"consultation_fee" validate:"omitempty,min=0"`
	Bio               *string           `json:"bio" validate:"omitempty,max=500"`
	Languages         []string          `json:"languages"`
	ProfilePicture    *string           `json:"profile_picture" validate:"omitempty,url,max=512"`
}

// DoctorListQuery captures directory search filters.
type DoctorListQuery struct {
	Specialization string `query:"specialization" validate:"omitempty,max=128"`
	Department     string `query:"department" validate:"omitempty,max=128"`
	Search         string `query:"search" validate:"omitempty,max=255"`
	Page           int    `query:"page" validate:"omitempty,min=1"`
	Limit          int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// DoctorRating mirrors the running-average aggregate.
type DoctorRating struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// DoctorResponse is the serialized doctor profile. Public set to true redacts
// the license number.
type DoctorResponse struct {
	ID                   uint              `json:"id"`
	UserID               uint              `json:"user_id"`
	FullName             string            `json:"full_name"`
	Email                string            `json:"email"`
	Phone                string            `json:"phone"`
	DateOfBirth          *time.Time        `json:"date_of_birth,omitempty"`
	Gender               string            `json:"gender,omitempty"`
	MedicalLicenseNumber string            `json:"medical_license_number,omitempty"`
	Specializations      []string          `json:"specializations"`
	Department           string            `json:"department"`
	YearsOfExperience    int               `json:"years_of_experience"`
	Education            []DoctorEducation `json:"education,omitempty"`
	HospitalName         string            `json:"hospital_name"`
	HospitalAddress      string            `json:"hospital_address,omitempty"`
	WorkSchedule         []DoctorWorkSlot  `json:"work_schedule,omitempty"`
	ConsultationFee      float64           `json:"consultation_fee"`
	ProfilePicture       string            `json:"profile_picture,omitempty"`
	Bio                  string            `json:"bio,omitempty"`
	Languages            []string          `json:"languages,omitempty"`
	Status               string            `json:"status"`
	VerificationStatus   string            `json:"verification_status"`
	Rating               DoctorRating      `json:"rating"`
	TotalConsultations   int64             `json:"total_consultations"`
	VerifiedAt           *time.Time        `json:"verified_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// DoctorListResponse wraps a paginated directory page.
type DoctorListResponse struct {
	Doctors     []DoctorResponse `json:"doctors"`
	TotalPages  int64            `json:"total_pages"`
	CurrentPage int              `json:"current_page"`
	Total       int64            `json:"total"`
}

// DoctorRateRequest rates a doctor between one and five stars.
type DoctorRateRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// DoctorVerifyRequest resolves a pending verification.
type DoctorVerifyRequest struct {
	Status string `json:"status" validate:"required,oneof=VERIFIED REJECTED"`
}

// NewDoctorResponse converts a model into a DTO. When public is true the
// license number is omitted from the projection.
func NewDoctorResponse(doctor models.Doctor, public bool) DoctorResponse {
	response := DoctorResponse{
		ID:                 doctor.ID,
		UserID:             doctor.UserID,
		FullName:           doctor.FullName,
		Email:              doctor.Email,
		Phone:              doctor.Phone,
		DateOfBirth:        doctor.DateOfBirth,
		Gender:             doctor.Gender,
		Specializations:    decodeStrings(doctor.Specializations),
		Department:         doctor.Department,
		YearsOfExperience:  doctor.YearsOfExperience,
		HospitalName:       doctor.HospitalName,
		HospitalAddress:    doctor.HospitalAddress,
		ConsultationFee:    doctor.ConsultationFee,
		ProfilePicture:     doctor.ProfilePicture,
		Bio:                doctor.Bio,
		Languages:          decodeStrings(doctor.Languages),
		Status:             doctor.Status,
		VerificationStatus: doctor.VerificationStatus,
		Rating:             DoctorRating{Average: doctor.RatingAverage, Count: doctor.RatingCount},
		TotalConsultations: doctor.TotalConsultations,
		VerifiedAt:         doctor.VerifiedAt,
		CreatedAt:          doctor.CreatedAt,
	}

	if !public {
		response.MedicalLicenseNumber = doctor.MedicalLicenseNumber
	}

	if len(doctor.Education) > 0 {
		_ = json.Unmarshal(doctor.Education, &response.Education)
	}
	if len(doctor.WorkSchedule) > 0 {
		_ = json.Unmarshal(doctor.WorkSchedule, &response.WorkSchedule)
	}

	return response
}

// NewDoctorResponseSlice converts models into public DTOs.
func NewDoctorResponseSlice(doctors []models.Doctor, public bool) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(doctors))
	for _, doctor := range doctors {
		out = append(out, NewDoctorResponse(doctor, public))
	}
	return out
}

func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
