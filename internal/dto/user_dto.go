package dto

import (
	"time"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

// UserResponse is the public projection of a user account. The credential is
// never serialized.
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Phone:     user.Phone,
		Avatar:    user.Avatar,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// UserCreateRequest describes the payload to create an account.
type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=2,max=128"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Name     string `json:"name" validate:"omitempty,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Avatar   string `json:"avatar" validate:"omitempty,url,max=512"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER DOCTOR"`
}

// UserUpdateRequest updates mutable account fields. Role is immutable after
// creation and deliberately absent here.
type UserUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=255"`
	Phone  *string `json:"phone" validate:"omitempty,max=32"`
	Avatar *string `json:"avatar" validate:"omitempty,url,max=512"`
}

// ChatableDoctorResponse is the directory entry returned to patients looking
// for a doctor to start a conversation with.
type ChatableDoctorResponse struct {
	UserID          uint     `json:"user_id"`
	DoctorID        uint     `json:"doctor_id"`
	Name            string   `json:"name"`
	Username        string   `json:"username"`
	Role            string   `json:"role"`
	Specializations []string `json:"specializations"`
	Department      string   `json:"department"`
	HospitalName    string   `json:"hospital_name"`
	ProfilePicture  string   `json:"profile_picture,omitempty"`
	Rating          float64  `json:"rating"`
}
