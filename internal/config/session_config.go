package config

import "time"

const (
	SessionBackendFilesystem = "filesystem"
	SessionBackendRedis      = "redis"
)

type SessionConfig interface {
	GetSessionBackend() string
	GetSessionDir() string
	GetSessionSecret() string
	GetSessionCookieName() string
	GetSessionCookieSecure() bool
	GetSessionLifetime() time.Duration
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionBackend() string {
	return GetEnv("SESSION_BACKEND", SessionBackendFilesystem)
}

func (Session) GetSessionDir() string {
	return GetEnv("SESSION_DIR", "./data/sessions")
}

func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "blobdrive_session")
}

// GetSessionCookieSecure defaults to true outside of DEV.
func (Session) GetSessionCookieSecure() bool {
	return GetBoolEnv("SESSION_COOKIE_SECURE", !EnvVars{}.IsDev())
}

func (Session) GetSessionLifetime() time.Duration {
	return GetDurationEnv("SESSION_LIFETIME", 24*time.Hour)
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetRedisDB() int {
	return int(GetInt64Env("REDIS_DB", 0))
}

func (Session) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "blobdrive:session:")
}
