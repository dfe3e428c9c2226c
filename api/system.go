package api

import (
	"net/http"
	"time"
)

// SystemHandler serves the unauthenticated operational endpoints.
type SystemHandler struct {
	StorageKind string
}

func NewSystemHandler(storageKind string) *SystemHandler {
	return &SystemHandler{StorageKind: storageKind}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Storage   string `json:"storage"`
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Storage:   h.StorageKind,
	}, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}
