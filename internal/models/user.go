package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	FullName       string    `json:"full_name"`
	UserName       string    `json:"user_name" gorm:"uniqueIndex"`
	Email          string    `json:"email" gorm:"uniqueIndex"`
	ProfilePicture string    `json:"profile_picture"`
	ProfileBgColor string    `json:"profile_bg_color"`
	FirebaseUID    *string   `json:"-" gorm:"uniqueIndex"`
	IsOnline       bool      `json:"is_online" gorm:"default:false;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserCompact is the author/actor view embedded in other payloads.
type UserCompact struct {
	ID             uint   `json:"id"`
	FullName       string `json:"full_name"`
	UserName       string `json:"user_name"`
	ProfilePicture string `json:"profile_picture"`
	ProfileBgColor string `json:"profile_bg_color"`
	IsOnline       bool   `json:"is_online"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:             u.ID,
		FullName:       u.FullName,
		UserName:       u.UserName,
		ProfilePicture: u.ProfilePicture,
		ProfileBgColor: u.ProfileBgColor,
		IsOnline:       u.IsOnline,
	}
}

type RegisterUserRequest struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	UserName       string `json:"user_name" validate:"required,min=2,max=30"`
	FullName       string `json:"full_name" validate:"required,min=2,max=50"`
	ProfilePicture string `json:"profile_picture,omitempty" validate:"omitempty,url"`
}

// FirebaseIdentity is what a verified Firebase ID token says about its user.
type FirebaseIdentity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type UpdateUserRequest struct {
	FullName       string `json:"full_name,omitempty" validate:"omitempty,min=2,max=50"`
	UserName       string `json:"user_name,omitempty" validate:"omitempty,min=2,max=30"`
	ProfilePicture string `json:"profile_picture,omitempty" validate:"omitempty,url"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
