package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/facturaIA/receipt-extract-service/api"
	"github.com/facturaIA/receipt-extract-service/internal/auth"
	"github.com/facturaIA/receipt-extract-service/internal/db"
	"github.com/facturaIA/receipt-extract-service/internal/extraction"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/services"
	"github.com/facturaIA/receipt-extract-service/internal/storage"
	"github.com/facturaIA/receipt-extract-service/internal/weights"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running in extraction-only mode (no persistence)")
	} else {
		defer db.Close()
		log.Println("Database connection pool initialized")
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Images will not be stored")
	} else {
		log.Println("MinIO storage initialized")
	}

	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Detector weights: adaptive (persisted feedback) when the database is
	// up, static defaults otherwise
	var provider weights.Provider
	if db.Pool != nil {
		store, err := db.NewWeightStore(context.Background())
		if err != nil {
			log.Printf("Warning: weight store unavailable, using static weights: %v", err)
			provider = weights.NewStatic()
		} else {
			provider = store
			log.Println("Adaptive detector weights loaded from database")
		}
	} else {
		provider = weights.NewStatic()
	}

	engine := extraction.NewEngine(provider)
	service := services.NewReceiptService(config, engine)

	// Create API handler
	handler := api.NewHandler(config, service)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Receipt Extract Service v%s on %s", api.Version, addr)
	log.Printf("OCR language: %s (psm %d)", config.OCR.Language, config.OCR.PSM)
	log.Printf("AI assist: enabled=%v provider=%s", config.Assist.Enabled, config.Assist.Provider)
	log.Printf("Database: %v", db.Pool != nil)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login                      - Authenticate", addr)
	log.Printf("  POST http://%s/api/process-receipt            - Process receipt image (requires JWT)", addr)
	log.Printf("  POST http://%s/api/extract                    - Extract from OCR fragments (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/extractions                - List extractions (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/extraction/{id}            - Get single extraction (requires JWT)", addr)
	log.Printf("  DELETE http://%s/api/extraction/{id}          - Delete extraction (requires JWT)", addr)
	log.Printf("  POST http://%s/api/extraction/{id}/feedback   - Submit corrections (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/stats                      - Get monthly stats (requires JWT)", addr)
	log.Printf("  GET  http://%s/health                         - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if lang := os.Getenv("OCR_LANGUAGE"); lang != "" {
		config.OCR.Language = lang
	}
	if psm := os.Getenv("OCR_PSM"); psm != "" {
		if v, err := strconv.Atoi(psm); err == nil {
			config.OCR.PSM = v
		}
	}
	if lang := os.Getenv("DEFAULT_LANGUAGE"); lang != "" {
		config.Extraction.DefaultLanguage = lang
	}
	if enabled := os.Getenv("ASSIST_ENABLED"); enabled != "" {
		config.Assist.Enabled = enabled == "true"
	}
	if provider := os.Getenv("ASSIST_PROVIDER"); provider != "" {
		config.Assist.Provider = provider
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Assist.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Assist.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.Assist.OpenAI.Model = model
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Assist.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.Assist.Gemini.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Assist.Ollama.BaseURL = baseURL
	}

	return &config, nil
}
