package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
)

// settings is a snapshot of the getters in a shape the validator can check.
type settings struct {
	Port                    string        `validate:"required"`
	BaseURL                 string        `validate:"required,url"`
	ClientID                string        `validate:"required"`
	ClientSecret            string        `validate:"required"`
	Authority               string        `validate:"required,url"`
	RedirectURI             string        `validate:"required,url"`
	Scopes                  []string      `validate:"min=1,dive,required"`
	PostLogoutRedirectURI   string        `validate:"required,url"`
	IdentityProviderTimeout time.Duration `validate:"gt=0"`
	StorageConnectionString string        `validate:"required"`
	ContainerName           string        `validate:"required"`
	SASTTL                  time.Duration `validate:"gt=0"`
	MaxUploadBytes          int64         `validate:"gt=0"`
	SessionBackend          string        `validate:"oneof=filesystem redis"`
	SessionDir              string        `validate:"required_if=SessionBackend filesystem"`
	SessionSecret           string        `validate:"min=32"`
	SessionLifetime         time.Duration `validate:"gt=0"`
	RedisAddr               string        `validate:"required_if=SessionBackend redis"`
}

// Validate checks everything the app needs before it can serve a request. A failure here is fatal at startup.
func Validate(c Config) error {
	s := settings{
		Port:                    c.GetPort(),
		BaseURL:                 c.GetBaseURL(),
		ClientID:                c.GetClientID(),
		ClientSecret:            c.GetClientSecret(),
		Authority:               c.GetAuthority(),
		RedirectURI:             c.GetRedirectURI(),
		Scopes:                  c.GetScopes(),
		PostLogoutRedirectURI:   c.GetPostLogoutRedirectURI(),
		IdentityProviderTimeout: c.GetIdentityProviderTimeout(),
		StorageConnectionString: c.GetStorageConnectionString(),
		ContainerName:           c.GetContainerName(),
		SASTTL:                  c.GetSASTTL(),
		MaxUploadBytes:          c.GetMaxUploadBytes(),
		SessionBackend:          c.GetSessionBackend(),
		SessionDir:              c.GetSessionDir(),
		SessionSecret:           c.GetSessionSecret(),
		SessionLifetime:         c.GetSessionLifetime(),
		RedisAddr:               c.GetRedisAddr(),
	}

	err := validator.New(validator.WithRequiredStructEnabled()).Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("[config Validate] %w: %w", apperrors.ErrInvalidConfig, err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("[config Validate] %w: %s", apperrors.ErrInvalidConfig, strings.Join(fields, ", "))
}
