package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/plugin/ai/assistant"
	chaterrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/store"
)

// Credential sources.
const (
	CredentialSourceEnvironment = "environment"
	CredentialSourceStore       = "store"
)

// NewKeySource resolves the upstream API key from the environment first, then from the store.
func NewKeySource(p *profile.Profile, st *store.Store) assistant.KeySource {
	return assistant.KeySourceFunc(func(ctx context.Context) (string, error) {
		if p.HasAPIKey() {
			return p.OpenAIAPIKey, nil
		}
		return st.GetOpenAIAPIKey(ctx)
	})
}

type CredentialStatus struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source,omitempty"`
	Masked     string `json:"masked,omitempty"`
}

type SetCredentialRequest struct {
	APIKey string `json:"api_key"`
}

// GetCredential reports whether an API key is configured and where it comes from.
// GET /api/v1/credential
func (s *APIV1Service) GetCredential(c echo.Context) error {
	return s.writeCredentialStatus(c)
}

func (s *APIV1Service) writeCredentialStatus(c echo.Context) error {
	status, err := s.credentialStatus(c)
	if err != nil {
		s.logger.Error("failed to read api key", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
	}
	return c.JSON(http.StatusOK, status)
}

// SetCredential saves an API key in the store.
// PUT /api/v1/credential
func (s *APIV1Service) SetCredential(c echo.Context) error {
	var req SetCredentialRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, chaterrors.InvalidArgument("invalid request body"))
	}
	if err := s.Store.SetOpenAIAPIKey(c.Request().Context(), req.APIKey); err != nil {
		if errors.Is(err, store.ErrInvalidAPIKey) {
			return errorJSON(c, chaterrors.InvalidArgument(err.Error()))
		}
		s.logger.Error("failed to save api key", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
	}
	s.logger.Info("api key saved")

	return s.writeCredentialStatus(c)
}

// DeleteCredential removes the stored API key. A key from the environment is unaffected.
// DELETE /api/v1/credential
func (s *APIV1Service) DeleteCredential(c echo.Context) error {
	if err := s.Store.DeleteOpenAIAPIKey(c.Request().Context()); err != nil {
		s.logger.Error("failed to delete api key", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
	}
	s.logger.Info("api key removed")

	return s.writeCredentialStatus(c)
}

func (s *APIV1Service) credentialStatus(c echo.Context) (*CredentialStatus, error) {
	if s.Profile.HasAPIKey() {
		return &CredentialStatus{
			Configured: true,
			Source:     CredentialSourceEnvironment,
			Masked:     store.MaskAPIKey(s.Profile.OpenAIAPIKey),
		}, nil
	}

	key, err := s.Store.GetOpenAIAPIKey(c.Request().Context())
	if err != nil {
		return nil, err
	}
	if key == "" {
		return &CredentialStatus{Configured: false}, nil
	}
	return &CredentialStatus{
		Configured: true,
		Source:     CredentialSourceStore,
		Masked:     store.MaskAPIKey(key),
	}, nil
}
