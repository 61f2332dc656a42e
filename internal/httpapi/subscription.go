package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"xui-sub-hub/internal/aggregator"
	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/models"
	"xui-sub-hub/internal/publicurl"
	"xui-sub-hub/internal/tokens"
)

// subscriptionResponse is the JSON rendering of an aggregation result
// plus the composed public URLs.
type subscriptionResponse struct {
	*models.AggregationResult
	SubscriptionURL string `json:"subscriptionUrl,omitempty"`
	ClashURL        string `json:"clashUrl,omitempty"`
	SingboxURL      string `json:"singboxUrl,omitempty"`
}

// verifyToken resolves the token from the request path and secret query
// parameter. On failure it writes the error response and returns ok
// false.
func (s *Server) verifyToken(c *gin.Context) (tokens.Verification, bool) {
	tokenID := c.Param("tokenId")
	v := s.verifier.Verify(tokenID, c.Query("secret"))
	if v.OK {
		return v, true
	}

	s.logger.Debugf("Token %s rejected: %s", tokenID, v.Reason)
	status := http.StatusForbidden
	if v.Reason == tokens.ReasonNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"ok": false, "reason": v.Reason})
	return v, false
}

// handleSubscription serves the public token-scoped subscription: raw
// line-delimited text by default, base64 with ?format=encoded, full
// JSON with ?format=json.
func (s *Server) handleSubscription(c *gin.Context) {
	v, ok := s.verifyToken(c)
	if !ok {
		return
	}

	serverID := c.Query("serverId")
	mode := c.Query("mode")
	result, err := s.orchestrator.Aggregate(c.Request.Context(), aggregator.Request{
		Identity: v.Identity,
		ServerID: serverID,
		Mode:     mode,
	})
	if err != nil {
		s.logger.Errorf("Aggregation failed for %s: %v", v.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	format := c.DefaultQuery("format", constants.FormatRaw)
	switch format {
	case constants.FormatJSON:
		subURL := s.composer.SubscriptionURL(requestInfo(c), c.Param("tokenId"), publicurl.Options{
			Secret:   c.Query("secret"),
			ServerID: serverID,
			Mode:     mode,
		})
		clashURL, singboxURL := s.composer.ConverterURLs(subURL)
		c.JSON(http.StatusOK, subscriptionResponse{
			AggregationResult: result,
			SubscriptionURL:   subURL,
			ClashURL:          clashURL,
			SingboxURL:        singboxURL,
		})
	case constants.FormatEncoded:
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(aggregator.RenderEncoded(result.Links)))
	default:
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(aggregator.RenderRaw(result.Links)))
	}
}

// handleSubscriptionQR renders a QR code of the public subscription URL.
func (s *Server) handleSubscriptionQR(c *gin.Context) {
	_, ok := s.verifyToken(c)
	if !ok {
		return
	}

	subURL := s.composer.SubscriptionURL(requestInfo(c), c.Param("tokenId"), publicurl.Options{
		Secret:   c.Query("secret"),
		ServerID: c.Query("serverId"),
		Mode:     c.Query("mode"),
	})
	png, err := qrcode.Encode(subURL, qrcode.Medium, 256)
	if err != nil {
		s.logger.Errorf("Failed to generate QR code: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate QR code"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// handleAggregate serves the JSON aggregation result for an explicit
// identity. Intended for internal callers behind the deployment's own
// access controls.
func (s *Server) handleAggregate(c *gin.Context) {
	identity := c.Query("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
		return
	}

	result, err := s.orchestrator.Aggregate(c.Request.Context(), aggregator.Request{
		Identity: identity,
		ServerID: c.Query("serverId"),
		Mode:     c.Query("mode"),
	})
	if err != nil {
		s.logger.Errorf("Aggregation failed for %s: %v", identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
