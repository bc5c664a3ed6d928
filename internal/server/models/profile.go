package models

import (
	"strings"
	"time"
)

type Profile struct {
	ID          string
	AccountID   string
	FirstName   string
	LastName    string
	DisplayName string
	PhoneNumber string
	Department  string
	Position    string
	Campus      string
	AvatarURL   string
	CreatedAt   time.Time
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Role struct {
	ID   int64
	Name string
}
