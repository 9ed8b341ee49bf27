package feishu

import (
	"context"
	"net/http"
	"time"

	"github.com/kart-io/clawprobe/pkg/errors"
)

const tenantAccessTokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

// tokenExpiryDelta is how long before the server-side expiry a token is refreshed
const tokenExpiryDelta = 3 * time.Minute

type tenantAccessTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tenantAccessTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"` // seconds
}

// TenantAccessToken returns a cached tenant access token, fetching a new one
// when none is cached or the cached one is about to expire.
func (c *Client) TenantAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var resp tenantAccessTokenResponse
	err := c.do(ctx, http.MethodPost, tenantAccessTokenPath, tenantAccessTokenRequest{
		AppID:     c.creds.AppID,
		AppSecret: c.creds.AppSecret,
	}, "", &resp)
	if err != nil {
		return "", err
	}

	if resp.Code != 0 {
		return "", errors.Newf(errors.ErrTokenRefresh, "failed to get tenant access token: %s", apiErrorMessage(resp.Code, resp.Msg)).
			WithPlatform(platformName).
			WithMetadata("code", resp.Code)
	}

	if resp.TenantAccessToken == "" {
		return "", errors.New(errors.ErrInvalidResponse, "tenant access token missing from response").WithPlatform(platformName)
	}

	c.token = resp.TenantAccessToken
	c.tokenExpiry = c.now().Add(time.Duration(resp.Expire)*time.Second - tokenExpiryDelta)

	c.logger.Debug("Tenant access token refreshed", "appId", c.creds.AppID, "expire", resp.Expire)

	return c.token, nil
}

// InvalidateToken drops the cached token so the next call fetches a new one
func (c *Client) InvalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}
