// Package server exposes a planner over HTTP with live updates on a
// websocket and an SSE stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/foreman/internal/planner"
	"github.com/zulandar/foreman/internal/store"
)

// FeedbackStats summarises recorded conflict feedback.
type FeedbackStats interface {
	Summary(ctx context.Context, since time.Time) ([]store.RuleStat, error)
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Planner *planner.Planner
	Port    int
	Out     io.Writer
	// Stats, when set, backs GET /api/feedback/summary.
	Stats FeedbackStats
	Now   func() time.Time
}

type server struct {
	pl     *planner.Planner
	hub    *Hub
	stats  FeedbackStats
	now    func() time.Time
	router *gin.Engine
}

func newServer(opts StartOpts) *server {
	s := &server{
		pl:    opts.Planner,
		hub:   NewHub(),
		stats: opts.Stats,
		now:   opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	registerRoutes(s.router, s)
	return s
}

// publish forwards planner updates to websocket clients.
func (s *server) publish(u planner.Update) {
	payload, err := json.Marshal(wsMessage{Type: "update", Data: u})
	if err != nil {
		log.Printf("server: encode update: %v", err)
		return
	}
	s.hub.Broadcast(payload)
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Planner == nil {
		return fmt.Errorf("server: planner is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	s := newServer(opts)
	go s.hub.Run(ctx)
	unsubscribe := opts.Planner.Subscribe(s.publish)
	defer unsubscribe()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Foreman API running at http://localhost:%d/api\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
