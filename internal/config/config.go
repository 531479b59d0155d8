package config

import "time"

type Config interface {
	EnvConfig
	OAuthConfig
	StorageConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
	IsDev() bool
}

type StorageConfig interface {
	GetStorageConnectionString() string
	GetContainerName() string
	GetSASTTL() time.Duration
	GetOfficeViewerURL() string
	GetMaxUploadBytes() int64
}

type mainConfig struct {
	EnvVars
	OAuth
	Storage
	Session
}

func New() Config {
	return mainConfig{}
}
