package publicurl

import (
	"fmt"
	"net/url"
	"strings"

	"xui-sub-hub/internal/config"
	"xui-sub-hub/internal/constants"
)

// RequestInfo carries the header values the composer may fall back to
// when no public base URL is configured.
type RequestInfo struct {
	ForwardedProto string
	ForwardedHost  string
	Origin         string
	Referer        string
	Host           string
	TLS            bool
}

// Options control the query parameters appended to a subscription URL.
// Zero values are defaults and are omitted. Secret must carry the
// token's secret whenever the token has one, or the composed URL will
// not pass verification.
type Options struct {
	Secret   string
	ServerID string
	Mode     string
	Format   string
}

// Composer builds externally-resolvable subscription URLs and optional
// converter URLs.
type Composer struct {
	publicBaseURL    string
	converterBaseURL string
	clashConfigURL   string
	singboxConfigURL string
}

// NewComposer creates a composer from the converter/public-base
// settings.
func NewComposer(cfg *config.Config) *Composer {
	return &Composer{
		publicBaseURL:    strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		converterBaseURL: strings.TrimSuffix(cfg.ConverterBaseURL, "/"),
		clashConfigURL:   cfg.ConverterClashConfigURL,
		singboxConfigURL: cfg.ConverterSingboxConfigURL,
	}
}

// BaseURL resolves the externally-reachable base URL: configured public
// base URL, then forwarded headers, then Origin, then Referer, then the
// request host.
func (c *Composer) BaseURL(req RequestInfo) string {
	if c.publicBaseURL != "" {
		return c.publicBaseURL
	}

	if req.ForwardedHost != "" {
		proto := req.ForwardedProto
		if proto == "" {
			proto = schemeFor(req.TLS)
		}
		return proto + "://" + req.ForwardedHost
	}

	if origin := strings.TrimSuffix(strings.TrimSpace(req.Origin), "/"); origin != "" {
		return origin
	}

	if req.Referer != "" {
		if u, err := url.Parse(req.Referer); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}

	return schemeFor(req.TLS) + "://" + req.Host
}

// SubscriptionURL builds the public token-scoped subscription URL.
// Query parameters are appended only when they differ from defaults.
func (c *Composer) SubscriptionURL(req RequestInfo, tokenID string, opts Options) string {
	base := c.BaseURL(req) + "/sub/" + url.PathEscape(tokenID)

	q := url.Values{}
	if opts.Secret != "" {
		q.Set("secret", opts.Secret)
	}
	if opts.ServerID != "" {
		q.Set("serverId", opts.ServerID)
	}
	if opts.Mode != "" && opts.Mode != constants.ModeAuto {
		q.Set("mode", opts.Mode)
	}
	if opts.Format != "" && opts.Format != constants.FormatRaw {
		q.Set("format", opts.Format)
	}

	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

// ConverterURLs builds the Clash and sing-box converter URLs for a
// subscription URL. Both are empty when no converter base URL is
// configured; that is never an error.
func (c *Composer) ConverterURLs(subscriptionURL string) (clashURL, singboxURL string) {
	if c.converterBaseURL == "" {
		return "", ""
	}

	clashURL = c.converterURL("clash", subscriptionURL, c.clashConfigURL)
	singboxURL = c.converterURL("singbox", subscriptionURL, c.singboxConfigURL)
	return clashURL, singboxURL
}

func (c *Composer) converterURL(target, subscriptionURL, configURL string) string {
	out := fmt.Sprintf("%s/sub?target=%s&url=%s", c.converterBaseURL, target, url.QueryEscape(subscriptionURL))
	if configURL != "" {
		out += "&config=" + url.QueryEscape(configURL)
	}
	return out
}

func schemeFor(tls bool) string {
	if tls {
		return "https"
	}
	return "http"
}
