package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorRole scopes what an operator account may do.
type OperatorRole string

// Operator roles.
const (
	RoleAdmin    OperatorRole = "ADMIN"
	RoleOperator OperatorRole = "OPERATOR"
)

// Operator is a staff account allowed to run imports and reports.
type Operator struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	FullName     string       `db:"full_name" json:"full_name"`
	PasswordHash string       `db:"password_hash" json:"-"`
	Role         OperatorRole `db:"role" json:"role"`
	Active       bool         `db:"active" json:"active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// JWTClaims carries operator identity inside access tokens.
type JWTClaims struct {
	OperatorID string       `json:"operator_id"`
	Email      string       `json:"email"`
	Role       OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the operator login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns an issued access token with operator info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Operator    struct {
		ID       string       `json:"id"`
		Email    string       `json:"email"`
		FullName string       `json:"full_name"`
		Role     OperatorRole `json:"role"`
	} `json:"operator"`
}
