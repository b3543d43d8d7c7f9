// Package api is the control surface for the UI and tracking collaborators.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"VpsClient/acquire"
	iface "VpsClient/interface"
	"VpsClient/logger"
	"VpsClient/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxFrameBytes = 20 * 1024 * 1024

// Localizer is the part of *session.Session the API drives.
type Localizer interface {
	Localize(ctx context.Context) (iface.Result, error)
	Authenticate(ctx context.Context) error
	State() session.State
	IsAuthenticated() bool
}

type Server struct {
	Session  Localizer
	Tracking *TrackingStore
	Hub      *Hub
	// Uploads receives POST /api/frame; nil when an accessory supplies frames.
	Uploads *acquire.Latest

	srv *http.Server
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/auth", s.authenticate)
	r.PUT("/api/tracking", s.putTracking)
	r.POST("/api/frame", s.postFrame)
	r.POST("/api/localize", s.localize)
	r.GET("/api/status", s.status)
	r.GET("/ws/results", s.Hub.Serve)
	return r
}

func (s *Server) authenticate(c *gin.Context) {
	err := s.Session.Authenticate(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
	case iface.KindOf(err) == iface.KindConfig:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": session.MsgBadCredentials, "detail": err.Error()})
	}
}

func (s *Server) putTracking(c *gin.Context) {
	var snap iface.TrackingSnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Tracking.Set(snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) postFrame(c *gin.Context) {
	if s.Uploads == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "frames come from the accessory"})
		return
	}
	file, err := c.FormFile("frame")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File upload failed: " + err.Error()})
		return
	}
	if file.Size > maxFrameBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("frame exceeds %d bytes", maxFrameBytes)})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty frame"})
		return
	}
	s.Uploads.Put(data)
	c.Status(http.StatusAccepted)
}

func (s *Server) localize(c *gin.Context) {
	res, err := s.Session.Localize(c.Request.Context())
	switch {
	case errors.Is(err, iface.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": s.Session.State()})
	case err != nil && iface.KindOf(err) == iface.KindConfig:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":         s.Session.State(),
		"authenticated": s.Session.IsAuthenticated(),
		"clients":       s.Hub.Clients(),
	})
}

func requestLogger() gin.HandlerFunc {
	log := logger.Named("api")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// Start serves on port in the background.
func (s *Server) Start(port int) {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("api server ListenAndServe error", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
