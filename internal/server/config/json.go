package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/beesrs/identity/internal/flagx"
	"github.com/beesrs/identity/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// strings such as "15m" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	MetricsAddr                  string         `json:"metrics_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	LogLevel                     string         `json:"log_level"`
	SecretKey                    string         `json:"secret_key"`
	Issuer                       string         `json:"issuer"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LockoutThreshold             int            `json:"lockout_threshold"`
	LockoutDuration              timex.Duration `json:"lockout_duration"`
	VerificationTokenValidity    timex.Duration `json:"verification_token_validity"`
	ResetTokenValidity           timex.Duration `json:"reset_token_validity"`
	VerificationCodeLength       int            `json:"verification_code_length"`
	AllowedDomains               []string       `json:"allowed_domains"`
	GoogleClientID               string         `json:"google_client_id"`
	RedisAddr                    string         `json:"redis_addr"`
	ResetRequestLimit            int            `json:"reset_request_limit"`
	ResetRequestWindow           timex.Duration `json:"reset_request_window"`
	NotificationBackend          string         `json:"notification_backend"`
	AppURL                       string         `json:"app_url"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Keys absent from the file keep their current value. No flag means no file.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setInt(&config.LockoutThreshold, c.LockoutThreshold)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setDuration(&config.VerificationTokenValidity, c.VerificationTokenValidity)
	setDuration(&config.ResetTokenValidity, c.ResetTokenValidity)
	setInt(&config.VerificationCodeLength, c.VerificationCodeLength)
	if len(c.AllowedDomains) > 0 {
		config.AllowedDomains = c.AllowedDomains
	}
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.RedisAddr, c.RedisAddr)
	setInt(&config.ResetRequestLimit, c.ResetRequestLimit)
	setDuration(&config.ResetRequestWindow, c.ResetRequestWindow)
	setString(&config.NotificationBackend, c.NotificationBackend)
	setString(&config.AppURL, c.AppURL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
