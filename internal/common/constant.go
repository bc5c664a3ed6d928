// Package common contains shared constants and sentinel errors used across
// the identity service components.
package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Role names seeded by the initial migration.
const (
	RoleAdmin    = "Admin"
	RoleEmployee = "Employee"
	RoleGuest    = "Guest"
)

// Login providers recorded in last-login metadata.
const (
	ProviderPassword = "Password"
	ProviderGoogle   = "Google"
)
