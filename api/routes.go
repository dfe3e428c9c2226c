package api

import (
	"net/http"

	"github.com/garnizeh/feedback/internal/config"
	"github.com/garnizeh/feedback/pkg/repository"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, store repository.Storage) http.Handler {
	r := mux.NewRouter()

	metrics := NewMetrics()
	r.Use(metrics.Middleware)

	// Create handlers
	systemHandler := NewSystemHandler(store.Kind())
	feedbackHandler := NewFeedbackHandler(store, metrics)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/api/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Feedback endpoints
	fb := r.PathPrefix("/api/feedback").Subrouter()
	fb.HandleFunc("", feedbackHandler.ListFeedback).Methods("GET")
	fb.HandleFunc("", feedbackHandler.CreateFeedback).Methods("POST")
	fb.HandleFunc("/{id}", feedbackHandler.GetFeedback).Methods("GET")
	fb.HandleFunc("/{id}", feedbackHandler.UpdateFeedback).Methods("PUT")
	fb.HandleFunc("/{id}", feedbackHandler.DeleteFeedback).Methods("DELETE")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	// Middleware chain, outermost last. These wrap the router rather than
	// using r.Use so preflight and unmatched requests pass through them too.
	var h http.Handler = r
	h = CORSMiddleware(cfg.CORS.AllowedOrigins)(h)
	h = LoggingMiddleware(h)
	if cfg.TrustProxy {
		h = middleware.RealIP(h)
	}
	h = middleware.RequestID(h)
	h = RecoveryMiddleware(h)

	return h
}
