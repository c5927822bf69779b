package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"kestrel/internal/auth"
	"kestrel/internal/middleware"
	"kestrel/internal/pipeline"
	"kestrel/internal/store"
	"kestrel/internal/stream"
	"kestrel/internal/ws"
)

// startHTTPServer mounts the service endpoints and serves them in the
// background. The returned func shuts the server down gracefully.
func startHTTPServer(
	addr string,
	hub *ws.Hub,
	ingestor *pipeline.FrameIngestor,
	preview *stream.Preview,
	history *store.HistoryHandler,
	authenticator *auth.Authenticator,
	errc chan<- error,
	logger *log.Logger,
) func() {
	mux := http.NewServeMux()
	protect := middleware.AuthMiddleware(authenticator)

	mux.Handle("/login", middleware.LoginHandler(authenticator))
	mux.Handle("/ws/detections", ws.NewHandler(hub, logger))
	mux.Handle("/detect", protect(ws.NewRequestHandler(ingestor, logger)))
	mux.Handle("/stream", preview)
	mux.Handle("/snapshot", stream.NewSnapshotHandler(preview))
	if history != nil {
		mux.Handle("/events", protect(history))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"clients": hub.ClientCount(),
			"viewers": preview.ClientCount(),
		})
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Printf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}
}
