// Package server implements the local HTTP server that hands build
// artifacts back to the player by {session}/{filename} path.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/subinject/subinject/internal/config"
	"github.com/subinject/subinject/internal/logging"
	"github.com/subinject/subinject/internal/middleware"
	"github.com/subinject/subinject/internal/store"
	"github.com/subinject/subinject/pkg/models"
)

// artifactContentType is the fixed response type for every served artifact
const artifactContentType = "text/plain; charset=utf-8"

// State is the server lifecycle state
type State int

// Server states
const (
	Stopped State = iota
	Starting
	Listening
)

// Builder runs one injection build. Satisfied by provider.Provider.
type Builder interface {
	Build(ctx context.Context, subtitles []models.Subtitle, originalURL, session string) models.BuildResult
}

// Server serves artifacts out of the store. Start is idempotent while
// listening; Stop shuts down gracefully so a later Start can succeed.
type Server struct {
	mu      sync.Mutex
	state   State
	httpSrv *http.Server
	addr    string

	cfg       config.ServerConfig
	artifacts store.Store
	builder   Builder
	logger    *logging.Logger
}

// New creates a server. builder may be nil, which disables the injection
// API and leaves only artifact serving.
func New(cfg config.ServerConfig, artifacts store.Store, builder Builder, logger *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		artifacts: artifacts,
		builder:   builder,
		logger:    logger.WithComponent("server"),
	}
}

// State returns the current lifecycle state
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound listen address, or "" while stopped
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listener and begins serving in the background. Calling
// Start while the server is already listening is a no-op. A bind failure
// is returned to the caller; there is no degraded mode for a server that
// exists solely to serve artifacts it just produced.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Stopped {
		return nil
	}
	s.state = Starting

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		s.state = Stopped
		return fmt.Errorf("failed to bind %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}

	s.httpSrv = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.addr = listener.Addr().String()
	s.state = Listening

	s.logger.Infof("Artifact server listening on %s", s.addr)

	// Capture the server locally: Stop clears s.httpSrv under the lock,
	// which the goroutine must not race against.
	srv := s.httpSrv
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Artifact server stopped unexpectedly")
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests,
// and clears state so a subsequent Start can succeed.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return nil
	}

	err := s.httpSrv.Shutdown(ctx)
	s.httpSrv = nil
	s.addr = ""
	s.state = Stopped

	s.logger.Info("Artifact server stopped")
	return err
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(s.logger), middleware.Metrics())

	if s.builder != nil {
		router.POST("/api/v1/inject", s.handleInject)
	}
	router.GET("/:session/:filename", s.serveArtifact)

	return router
}

// serveArtifact resolves the request path against the artifact store. Found
// artifacts come back 200 with their exact bytes; anything else is an empty
// 204. The connection is closed after each response.
func (s *Server) serveArtifact(c *gin.Context) {
	session := c.Param("session")
	filename := c.Param("filename")

	c.Header("Connection", "close")

	data, err := s.artifacts.Read(c.Request.Context(), session, filename)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidPath) {
			s.logger.WithError(err).WithSession(session).Error("Artifact lookup failed")
		}
		c.Status(http.StatusNoContent)
		return
	}

	c.Data(http.StatusOK, artifactContentType, data)
}

// injectRequest is the injection API payload
type injectRequest struct {
	ManifestURL string            `json:"manifest_url" binding:"required"`
	Session     string            `json:"session"`
	Subtitles   []models.Subtitle `json:"subtitles" binding:"required,min=1,dive"`
}

// handleInject runs a build for a remote caller and returns the result.
// Build never fails outright, so the response is always 200 with an
// outcome field for the caller to inspect.
func (s *Server) handleInject(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.builder.Build(c.Request.Context(), req.Subtitles, req.ManifestURL, req.Session)
	c.JSON(http.StatusOK, result)
}
