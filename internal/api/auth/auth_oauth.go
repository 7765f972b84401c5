package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/voyplan/voyplan/config"
	"github.com/voyplan/voyplan/internal/api"
	"github.com/voyplan/voyplan/internal/types"
)

// SetupOAuthProviders registers the external identity providers with goth.
// Providers with empty credentials are skipped.
func SetupOAuthProviders(cfg config.Config) {
	if cfg.Auth.GoogleClientKey == "" {
		return
	}
	goth.UseProviders(
		google.New(cfg.Auth.GoogleClientKey, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleCallbackURL, "email", "profile"),
	)
}

// OAuthBegin redirects the browser to the external provider's consent page.
func (h *HandlerImpl) OAuthBegin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	r = gothic.GetContextWithProvider(r, provider)
	gothic.BeginAuthHandler(w, r)
}

// OAuthCallback completes the provider handshake and issues our own tokens.
func (h *HandlerImpl) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "OAuthCallback"))

	provider := chi.URLParam(r, "provider")
	r = gothic.GetContextWithProvider(r, provider)

	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		l.WarnContext(r.Context(), "OAuth handshake failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, "OAuth sign-in failed")
		return
	}

	accessToken, refreshToken, err := h.service.OAuthLogin(r.Context(), gothUser)
	if err != nil {
		l.ErrorContext(r.Context(), "OAuth login failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Message:      "Login successful",
	})
}
