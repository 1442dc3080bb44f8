package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// OCR config
	OCR OCRConfig `yaml:"ocr"`

	// Extraction config
	Extraction ExtractionConfig `yaml:"extraction"`

	// AI assist config (advisory cross-check only)
	Assist AssistConfig `yaml:"assist"`
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	Language string `yaml:"language"` // Tesseract language pack (default: "eng")
	PSM      int    `yaml:"psm"`      // Tesseract page segmentation mode (default: 6)
}

// ExtractionConfig tunes the reconciliation pipeline
type ExtractionConfig struct {
	DefaultLanguage string `yaml:"default_language"` // used when detection is inconclusive
}

// AssistConfig configures the optional AI second-opinion check
type AssistConfig struct {
	Enabled             bool    `yaml:"enabled"`
	Provider            string  `yaml:"provider"` // "openai", "gemini", "ollama"
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama"`
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "mistral", "llama3"
}
