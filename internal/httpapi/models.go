package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"keel/internal/session"
)

type createSessionRequest struct {
	UserID     string         `json:"user_id" validate:"required"`
	DeviceID   string         `json:"device_id" validate:"required"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
}

type refreshRequest struct {
	SessionID    string `json:"session_id" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
	DeviceID     string `json:"device_id,omitempty"`
}

type logoutRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type logoutAllRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type introspectRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type tokenResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newTokenResponse(issued session.Issued) tokenResponse {
	return tokenResponse{
		SessionID:        issued.Session.ID,
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExpiresAt,
		RefreshToken:     issued.RefreshSecret,
		RefreshExpiresAt: issued.RefreshExpiresAt,
	}
}

type sessionResponse struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	LastUsedAt time.Time      `json:"last_used_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

func newSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		DeviceID:   s.DeviceID,
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		UserAgent:  s.UserAgent,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

type introspectResponse struct {
	Active    bool      `json:"active"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

type revokeAllResponse struct {
	Revoked int `json:"revoked"`
}

type revokeResponse struct {
	Revoked bool `json:"revoked"`
}

// validationDetails flattens validator errors into field -> tag pairs.
func validationDetails(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}
