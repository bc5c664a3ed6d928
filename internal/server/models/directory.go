package models

import "time"

// Employment statuses held by the HR directory.
const (
	EmploymentActive    = "Active"
	EmploymentInactive  = "Inactive"
	EmploymentSuspended = "Suspended"
	EmploymentResigned  = "Resigned"
)

// DirectoryRecord is an HR registry entry. At most one account links to it.
type DirectoryRecord struct {
	ID              string
	EmployeeCode    string
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	Department      string
	Position        string
	Campus          string
	Status          string
	IsRegistered    bool
	AccountID       *string
	RegisteredAt    *time.Time
	EmailVerified   bool
	EmailVerifiedAt *time.Time
}

func (r *DirectoryRecord) IsActive() bool {
	return r.Status == EmploymentActive
}
