package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"xui-sub-hub/internal/aggregator"
	"xui-sub-hub/internal/publicurl"
	"xui-sub-hub/internal/registry"
	"xui-sub-hub/internal/tokens"
)

// Server wires the aggregation engine to its public HTTP surface.
type Server struct {
	orchestrator *aggregator.Orchestrator
	verifier     tokens.Verifier
	composer     *publicurl.Composer
	registry     registry.Registry
	logger       *logrus.Logger
}

// NewServer creates the HTTP API server.
func NewServer(orchestrator *aggregator.Orchestrator, verifier tokens.Verifier, composer *publicurl.Composer, reg registry.Registry, logger *logrus.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		verifier:     verifier,
		composer:     composer,
		registry:     reg,
		logger:       logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/sub/:tokenId", s.handleSubscription)
	r.GET("/sub/:tokenId/qr", s.handleSubscriptionQR)
	r.GET("/api/subscription", s.handleAggregate)
	r.GET("/api/servers", s.handleListServers)

	return r
}

// Run starts the HTTP server on the given address.
func (s *Server) Run(addr string) error {
	s.logger.Infof("Starting HTTP API on %s", addr)
	return s.Router().Run(addr)
}

// requestInfo collects the header values the URL composer may fall
// back to.
func requestInfo(c *gin.Context) publicurl.RequestInfo {
	return publicurl.RequestInfo{
		ForwardedProto: c.GetHeader("X-Forwarded-Proto"),
		ForwardedHost:  c.GetHeader("X-Forwarded-Host"),
		Origin:         c.GetHeader("Origin"),
		Referer:        c.GetHeader("Referer"),
		Host:           c.Request.Host,
		TLS:            c.Request.TLS != nil,
	}
}

func (s *Server) handleListServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"servers": s.registry.ListServers()})
}
