package panelclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-sub-hub/internal/config"
	"xui-sub-hub/internal/constants"
	apperrors "xui-sub-hub/internal/errors"
	"xui-sub-hub/internal/models"
)

// Client talks to one panel's HTTP API. Session cookies are kept in an
// injected cache keyed by server id, so independent clients for the
// same server reuse one authenticated session.
type Client struct {
	httpClient   *resty.Client
	serverConfig config.ServerConfig
	sessionCache *cache.Cache
	logger       *logrus.Logger
}

// PanelAPIResponse represents the envelope returned by the panel API.
type PanelAPIResponse struct {
	Success bool        `json:"success"`
	Msg     string      `json:"msg"`
	Obj     interface{} `json:"obj"`
}

// NewClient creates a new panel API client.
func NewClient(serverConfig config.ServerConfig, sessionCache *cache.Cache, logger *logrus.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(constants.DefaultTimeout * time.Second).
		SetRetryCount(constants.DefaultRetryCount).
		SetRetryWaitTime(constants.DefaultRetryWaitTime * time.Second).
		SetRetryMaxWaitTime(constants.DefaultRetryMaxWaitTime * time.Second)

	if serverConfig.Insecure {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		httpClient:   httpClient,
		serverConfig: serverConfig,
		sessionCache: sessionCache,
		logger:       logger,
	}
}

func (c *Client) sessionKey() string {
	return "session:" + c.serverConfig.ID
}

// Login logs in to the panel API, reusing a cached session when one is
// available.
func (c *Client) Login(ctx context.Context) error {
	if _, found := c.sessionCache.Get(c.sessionKey()); found {
		return nil
	}

	c.logger.Infof("Logging in to panel %s at %s", c.serverConfig.Name, c.serverConfig.APIURL)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"username": c.serverConfig.User,
			"password": c.serverConfig.Password,
		}).
		Post(fmt.Sprintf("%s/login", c.serverConfig.APIURL))

	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Errorf("Login failed - URL: %s/login, Status: %d, Response: %s",
			c.serverConfig.APIURL, resp.StatusCode(), string(resp.Body()))
		return &apperrors.PanelAPIError{
			Operation: "login",
			Server:    c.serverConfig.Name,
			Status:    resp.StatusCode(),
			Message:   string(resp.Body()),
		}
	}

	var apiResp PanelAPIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}

	if !apiResp.Success {
		return &apperrors.PanelAPIError{
			Operation: "login",
			Server:    c.serverConfig.Name,
			Status:    resp.StatusCode(),
			Message:   apiResp.Msg,
		}
	}

	cookies := resp.Cookies()
	if len(cookies) > 0 {
		c.sessionCache.Set(c.sessionKey(), cookies, cache.DefaultExpiration)
		c.logger.Infof("Successfully logged in to panel %s", c.serverConfig.Name)
		return nil
	}

	return errors.New("no session cookie received from server")
}

// GetInbounds lists the inbounds configured on the panel. A stale
// session gets one re-login attempt before the call fails.
func (c *Client) GetInbounds(ctx context.Context) ([]models.Inbound, error) {
	return c.getInbounds(ctx, true)
}

func (c *Client) getInbounds(ctx context.Context, retryAuth bool) ([]models.Inbound, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	cookies, _ := c.sessionCache.Get(c.sessionKey())

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetCookies(cookies.([]*http.Cookie)).
		Get(fmt.Sprintf("%s/xui/API/inbounds", c.serverConfig.APIURL))

	if err != nil {
		return nil, fmt.Errorf("get inbounds request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		if resp.StatusCode() == http.StatusUnauthorized {
			c.sessionCache.Delete(c.sessionKey())
			if retryAuth {
				return c.getInbounds(ctx, false)
			}
		}
		c.logger.Errorf("Get inbounds failed - Status: %d, Response: %s", resp.StatusCode(), string(resp.Body()))
		return nil, &apperrors.PanelAPIError{
			Operation: "list-inbounds",
			Server:    c.serverConfig.Name,
			Status:    resp.StatusCode(),
			Message:   string(resp.Body()),
		}
	}

	var apiResp PanelAPIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse inbounds response: %w", err)
	}

	if !apiResp.Success {
		return nil, &apperrors.PanelAPIError{
			Operation: "list-inbounds",
			Server:    c.serverConfig.Name,
			Status:    resp.StatusCode(),
			Message:   apiResp.Msg,
		}
	}

	objJSON, err := json.Marshal(apiResp.Obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inbounds obj: %w", err)
	}

	var inbounds []models.Inbound
	if err := json.Unmarshal(objJSON, &inbounds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inbounds: %w", err)
	}

	return inbounds, nil
}

// FetchSubscription fetches the panel-issued subscription payload for a
// client subscription-group id and returns the opaque text.
func (c *Client) FetchSubscription(ctx context.Context, subID string) (string, error) {
	base := strings.TrimSpace(c.serverConfig.SubURLPrefix)
	if base == "" {
		return "", errors.New("subscription URL prefix not configured for this server")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/sub/%s", strings.TrimSuffix(base, "/"), subID))

	if err != nil {
		return "", fmt.Errorf("subscription request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &apperrors.PanelAPIError{
			Operation: "fetch-subscription",
			Server:    c.serverConfig.Name,
			Status:    resp.StatusCode(),
			Message:   string(resp.Body()),
		}
	}

	return string(resp.Body()), nil
}

// ConnectHost returns the address clients should connect to: the
// configured connect host when set, otherwise the API URL's hostname.
func (c *Client) ConnectHost() string {
	if c.serverConfig.ConnectHost != "" {
		return c.serverConfig.ConnectHost
	}
	return config.HostFromURL(c.serverConfig.APIURL)
}
