package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/facturaIA/receipt-extract-service/internal/auth"
	"github.com/facturaIA/receipt-extract-service/internal/db"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/ocr"
	"github.com/facturaIA/receipt-extract-service/internal/services"
	"github.com/facturaIA/receipt-extract-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for receipt extraction
type Handler struct {
	config  *models.Config
	service *services.ReceiptService
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, service *services.ReceiptService) *Handler {
	return &Handler{
		config:  config,
		service: service,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Extraction endpoints
	router.HandleFunc("/api/process-receipt", h.ProcessReceipt).Methods("POST")
	router.HandleFunc("/api/extract", h.Extract).Methods("POST")

	// Stored extraction CRUD
	router.HandleFunc("/api/extractions", h.GetExtractions).Methods("GET")
	router.HandleFunc("/api/extraction/{id}", h.GetExtraction).Methods("GET")
	router.HandleFunc("/api/extraction/{id}", h.DeleteExtraction).Methods("DELETE")
	router.HandleFunc("/api/extraction/{id}/feedback", h.SubmitFeedback).Methods("POST")

	// Statistics
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status      string        `json:"status"`
	Version     string        `json:"version"`
	Timestamp   string        `json:"timestamp"`
	Uptime      string        `json:"uptime"`
	Memory      MemoryStats   `json:"memory"`
	Tesseract   ServiceStatus `json:"tesseract"`
	ImageMagick ServiceStatus `json:"imageMagick"`
	Database    ServiceStatus `json:"database"`
	Storage     ServiceStatus `json:"storage"`
	Assist      string        `json:"assist"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := checkTesseract()
	imageMagickStatus := checkImageMagick()
	databaseStatus := checkDatabase()
	storageStatus := checkStorage()

	assistStatus := "disabled"
	if h.config.Assist.Enabled {
		assistStatus = h.config.Assist.Provider
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract:   tesseractStatus,
		ImageMagick: imageMagickStatus,
		Database:    databaseStatus,
		Storage:     storageStatus,
		Assist:      assistStatus,
	}

	// OCR tools are required for image processing; /api/extract still works
	// without them, so report degraded rather than down
	if !tesseractStatus.Available || !imageMagickStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkTesseract verifies Tesseract OCR is available
func checkTesseract() ServiceStatus {
	version, err := ocr.Version()
	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "tesseract not found or not executable",
		}
	}
	return ServiceStatus{Available: true, Version: version}
}

// checkImageMagick verifies ImageMagick is available
func checkImageMagick() ServiceStatus {
	version, err := ocr.MagickVersion()
	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "imagemagick not found or not executable",
		}
	}
	return ServiceStatus{Available: true, Version: version}
}

// checkDatabase verifies PostgreSQL connection
func checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{Available: true, Version: "PostgreSQL via PgBouncer"}
}

// checkStorage verifies MinIO connection
func checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}
	return ServiceStatus{Available: true, Version: "MinIO S3"}
}

// ExtractRequest is the body for /api/extract: positioned OCR fragments
// from an external OCR pass.
type ExtractRequest struct {
	Fragments []models.TextFragment `json:"fragments"`
	Language  string                `json:"language,omitempty"`
}

// Extract runs the reconciliation pipeline over caller-supplied fragments
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Fragments) == 0 {
		h.sendError(w, http.StatusBadRequest, "no fragments provided")
		return
	}

	result := h.service.ExtractFromFragments(r.Context(), req.Fragments, req.Language)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// ProcessReceipt handles receipt image upload, OCR and extraction
func (h *Handler) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "file too large or invalid form data")
		return
	}

	// Accept both "file" and "image" field names
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "no file provided (use 'file' or 'image' field)")
			return
		}
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	language := r.FormValue("language")

	outcome, err := h.service.ProcessReceipt(ctx, imageData, contentType, header.Filename, claims.UserID, language)
	if err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(outcome)
}

// GetExtractions lists the authenticated user's stored extractions
func (h *Handler) GetExtractions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	extractions, err := db.ListExtractions(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list extractions")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"extractions": extractions,
		"count":       len(extractions),
	})
}

// GetExtraction returns a single stored extraction, with a presigned image
// URL when storage is available
func (h *Handler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id := mux.Vars(r)["id"]
	extraction, err := db.GetExtraction(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "extraction not found")
		return
	}
	if extraction.UserID != claims.UserID && claims.Role != "admin" {
		h.sendError(w, http.StatusForbidden, "extraction belongs to another user")
		return
	}

	response := map[string]interface{}{"extraction": extraction}
	if storage.Client != nil && extraction.ImagePath != "" {
		if url, err := storage.GetPresignedURL(r.Context(), extraction.ImagePath); err == nil {
			response["image_url"] = url
		}
	}

	json.NewEncoder(w).Encode(response)
}

// DeleteExtraction removes a stored extraction and its image
func (h *Handler) DeleteExtraction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id := mux.Vars(r)["id"]
	imagePath, err := db.DeleteExtraction(r.Context(), claims.UserID, id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "extraction not found")
		return
	}

	if storage.Client != nil && imagePath != "" {
		// record is already gone; an orphaned image is not worth failing over
		storage.DeleteImage(r.Context(), imagePath)
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})
}

// SubmitFeedback records user corrections for a stored extraction. Feedback
// drives the adaptive detector weights.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id := mux.Vars(r)["id"]
	extraction, err := db.GetExtraction(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "extraction not found")
		return
	}
	if extraction.UserID != claims.UserID && claims.Role != "admin" {
		h.sendError(w, http.StatusForbidden, "extraction belongs to another user")
		return
	}

	var fb db.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid feedback body")
		return
	}

	if err := db.SaveFeedback(r.Context(), id, &fb); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}

	// replay the verdict onto the detector sources that built this result
	var stored models.ExtractedResult
	if json.Unmarshal([]byte(extraction.ResultJSON), &stored) == nil {
		h.service.RecordFeedback(stored.EvidenceSummary.SourcesUsed, fb.Correct, stored.Confidence)
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "recorded", "id": id})
}

// GetStats returns monthly extraction statistics for the user
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	stats, err := db.GetMonthlyStats(r.Context(), claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"months": stats})
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
