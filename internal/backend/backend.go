package backend

import (
	"context"
	"errors"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
)

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrUnavailable    = errors.New("backend unavailable")
)

// Identity is the verified subject returned by a credential check.
type Identity struct {
	AdminID     string `json:"admin_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Backend is the remote collaborator behind the session core. A silent
// always-true ValidateSession would defeat the expiry and revocation
// model, so every implementation must consult real server-side state.
type Backend interface {
	// VerifyCredentials checks a sanitized identity/secret pair; it
	// returns ErrBadCredentials without distinguishing unknown subject
	// from wrong secret.
	VerifyCredentials(ctx context.Context, email, secret string) (*Identity, error)

	// ValidateSession reports whether token is live server-side.
	ValidateSession(ctx context.Context, token string) (bool, error)

	// IssueSession registers a freshly generated token server-side.
	IssueSession(ctx context.Context, token, adminID string) error

	// ExtendSession pushes a live token's server-side expiry forward.
	ExtendSession(ctx context.Context, token string) (bool, error)

	// RevokeSession is best-effort; logout proceeds even when it fails.
	RevokeSession(ctx context.Context, token string) error

	// RecordSecurityEvent and RecordSecurityAlert are fire-and-forget
	// audit sinks; failures never block the caller.
	RecordSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
	RecordSecurityAlert(ctx context.Context, alert *models.SecurityAlert) error

	// LookupClientAddress is best-effort metadata enrichment and
	// degrades to "unknown".
	LookupClientAddress(ctx context.Context) (string, error)
}

type clientAddressKey struct{}

// WithClientAddress stamps the originating network address onto ctx;
// the HTTP middleware does this once per request.
func WithClientAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddressKey{}, addr)
}

// ClientAddressFrom extracts the stamped address, empty when absent.
func ClientAddressFrom(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddressKey{}).(string)
	return addr
}

type clientSignatureKey struct{}

// WithClientSignature stamps the caller's user agent string onto ctx.
func WithClientSignature(ctx context.Context, sig string) context.Context {
	return context.WithValue(ctx, clientSignatureKey{}, sig)
}

// ClientSignatureFrom extracts the stamped signature, empty when absent.
func ClientSignatureFrom(ctx context.Context) string {
	sig, _ := ctx.Value(clientSignatureKey{}).(string)
	return sig
}
