package adplatform

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
	"github.com/ManuelReschke/TrackFox/internal/pkg/resilience"
	"github.com/ManuelReschke/TrackFox/internal/pkg/security"
)

// ClientFactory builds a Client from a stored connection, decrypting its
// credentials first. Rotated tokens are encrypted and written back through tokens.
type ClientFactory interface {
	NewClient(conn *models.AdAccountConnection) (Client, error)
}

// Factory is the production ClientFactory.
type Factory struct {
	Google     GoogleAdsConfig
	Meta       MetaConfig
	Cipher     *security.TokenCipher
	Guard      *resilience.Guard
	HTTPClient *http.Client
	Tokens     TokenStore
}

func (f *Factory) NewClient(conn *models.AdAccountConnection) (Client, error) {
	const op = "adplatform.newClient"
	if conn == nil {
		return nil, apperror.Validation(op, "connection is required")
	}

	access, err := f.decrypt(conn.AccessTokenEnc)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindAuth, op, err)
	}
	refresh, err := f.decrypt(conn.RefreshTokenEnc)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindAuth, op, err)
	}

	switch conn.Platform {
	case models.AdPlatformGoogleAds:
		if access == "" && refresh == "" {
			return nil, apperror.Auth(op, "connection has no Google Ads credentials")
		}
		return NewGoogleAdsClient(f.Google, GoogleAdsCredentials{
			CustomerID:      conn.ExternalAccountID,
			LoginCustomerID: conn.LoginCustomerID,
			AccessToken:     access,
			RefreshToken:    refresh,
		}, f.HTTPClient, f.Guard, f.tokenSink(conn.ID)), nil
	case models.AdPlatformMetaAds:
		if access == "" {
			return nil, apperror.Auth(op, "connection has no Meta access token")
		}
		return NewMetaClient(f.Meta, MetaCredentials{
			AccountID:      conn.ExternalAccountID,
			AccessToken:    access,
			TokenExpiresAt: conn.TokenExpiresAt,
		}, f.HTTPClient, f.Guard, f.tokenSink(conn.ID)), nil
	default:
		return nil, apperror.Validation(op, "unsupported ad platform "+string(conn.Platform))
	}
}

func (f *Factory) decrypt(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	if f.Cipher == nil {
		return "", security.ErrInvalidKey
	}
	return f.Cipher.Decrypt(enc)
}

func (f *Factory) tokenSink(connID uint) TokenRefreshFunc {
	if f.Tokens == nil || f.Cipher == nil {
		return nil
	}
	return func(_ context.Context, accessToken, refreshToken string, expiresAt *time.Time) error {
		accessEnc, err := f.Cipher.Encrypt(accessToken)
		if err != nil {
			return err
		}
		refreshEnc, err := f.Cipher.Encrypt(refreshToken)
		if err != nil {
			return err
		}
		return f.Tokens.UpdateTokens(connID, accessEnc, refreshEnc, expiresAt)
	}
}
