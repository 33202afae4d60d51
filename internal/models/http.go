package models

import "time"

type RegisterReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshReq is optional; the refresh token may come from the cookie instead.
type RefreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type TokensRes struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type MessageRes struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

type LogoutAllRes struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type PrincipalRes struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
