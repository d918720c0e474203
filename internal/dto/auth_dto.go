package dto

// LoginRequest carries credentials for username/password authentication.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=2,max=128"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// LoginResponse returns the signed token together with the public user record.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
