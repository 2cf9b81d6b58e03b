package onemap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/resilience"
)

// tokenSafety renews tokens this long before their stated expiry.
const tokenSafety = 5 * time.Minute

type tokenResponse struct {
	AccessToken     string `json:"access_token"`
	ExpiryTimestamp string `json:"expiry_timestamp"`
}

// accessToken returns a cached token, fetching a fresh one when the
// cache is empty or near expiry.
func (c *client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSafety)) {
		return c.token, nil
	}
	return c.fetchTokenLocked(ctx)
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}

func (c *client) fetchTokenLocked(ctx context.Context) (string, error) {
	if c.email == "" || c.password == "" {
		return "", resilience.NewError(resilience.KindAuthExpired,
			eris.New("onemap: no credentials configured"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "onemap: auth rate limit")
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", eris.Wrap(err, "onemap: encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/post/getToken", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "onemap: build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", resilience.NewError(resilience.KindServerError,
			eris.Wrap(err, "onemap: auth request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", resilience.FromHTTPStatus(resp.StatusCode,
			eris.Errorf("onemap: auth returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "onemap: read auth response")
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", eris.Wrap(err, "onemap: parse auth response")
	}
	if tr.AccessToken == "" {
		return "", resilience.NewError(resilience.KindAuthExpired,
			eris.New("onemap: auth response carried no token"))
	}

	c.token = tr.AccessToken
	c.tokenExpiry = parseExpiry(tr.ExpiryTimestamp)
	zap.L().Debug("refreshed onemap token", zap.Time("expiry", c.tokenExpiry))
	return c.token, nil
}

// parseExpiry decodes the unix-seconds expiry string. An unparsable
// value yields a short lifetime so the token still rotates.
func parseExpiry(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().Add(30 * time.Minute)
	}
	return time.Unix(secs, 0)
}

// doAuthorized runs an authenticated GET. A 401 invalidates the cached
// token and retries exactly once with a fresh one; a second 401
// surfaces as an auth failure.
func (c *client) doAuthorized(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.getWithToken(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		zap.L().Warn("onemap token rejected, re-authenticating once")
		c.invalidateToken()
		body, status, err = c.getWithToken(ctx, url)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, resilience.NewError(resilience.KindAuthExpired,
				eris.New("onemap: request unauthorized after re-auth"))
		}
	}
	if status != http.StatusOK {
		return nil, resilience.FromHTTPStatus(status,
			eris.Errorf("onemap: request returned status %d", status))
	}
	return body, nil
}

func (c *client) getWithToken(ctx context.Context, url string) ([]byte, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "onemap: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "onemap: build request")
	}
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, resilience.NewError(resilience.KindServerError,
			eris.Wrap(err, "onemap: request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "onemap: read response")
	}
	return body, resp.StatusCode, nil
}

// doPublic runs an unauthenticated GET against a public endpoint.
func (c *client) doPublic(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "onemap: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "onemap: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewError(resilience.KindServerError,
			eris.Wrap(err, "onemap: request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.FromHTTPStatus(resp.StatusCode,
			eris.Errorf("onemap: request returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "onemap: read response")
	}
	return body, nil
}
