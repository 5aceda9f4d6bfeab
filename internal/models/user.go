package models

import (
	"fmt"
	"strings"
)

// Domain tells which side of the system a user belongs to.
type Domain string

const (
	DomainStudent Domain = "STUDENT"
	DomainStaff   Domain = "STAFF"
)

// ParseDomain normalises raw into a Domain.
func ParseDomain(raw string) (Domain, error) {
	switch d := Domain(strings.ToUpper(strings.TrimSpace(raw))); d {
	case DomainStudent, DomainStaff:
		return d, nil
	default:
		return "", fmt.Errorf("unknown domain %q", raw)
	}
}

// User is an account that can sign in. Username is the key and is
// case-sensitive.
type User struct {
	Username     string `json:"username" validate:"required"`
	PasswordHash string `json:"-" validate:"required"`
	Domain       Domain `json:"domain" validate:"required,oneof=STUDENT STAFF"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone"`
}

// Clone returns an independent copy.
func (u *User) Clone() User {
	return *u
}
