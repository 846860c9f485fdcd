package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	OCR struct {
		Languages []string `yaml:"languages"`
		DPI       float64  `yaml:"dpi"`
		MaxPages  int      `yaml:"max_pages"`
	} `yaml:"ocr"`

	Embedding struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"embedding"`

	Store struct {
		Backend    string `yaml:"backend"` // chromem | pgvector
		Path       string `yaml:"path"`
		Collection string `yaml:"collection"`
		URL        string `yaml:"url"`
		TableName  string `yaml:"table_name"`
	} `yaml:"store"`

	Processor struct {
		ChunkSize        int `yaml:"chunk_size"`
		ChunkOverlap     int `yaml:"chunk_overlap"`
		MinContentLength int `yaml:"min_content_length"`
	} `yaml:"processor"`

	Fetcher struct {
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"fetcher"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docsearch/config.yaml"),
			"/etc/docsearch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 9000
	}

	if len(config.OCR.Languages) == 0 {
		config.OCR.Languages = []string{"eng"}
	}
	if config.OCR.DPI == 0 {
		config.OCR.DPI = 150
	}
	if config.OCR.MaxPages == 0 {
		config.OCR.MaxPages = 20
	}

	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.VectorDim == 0 {
		config.Embedding.VectorDim = 768
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "chromem"
	}
	if config.Store.Path == "" {
		config.Store.Path = "./vector_db"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "mywind_documents"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "documents"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 50
	}
	if config.Processor.MinContentLength == 0 {
		config.Processor.MinContentLength = 10
	}

	if config.Fetcher.RateLimit == 0 {
		config.Fetcher.RateLimit = 2.0
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if path := os.Getenv("VECTOR_DB_PATH"); path != "" {
		config.Store.Path = path
	}
	if port := os.Getenv("OCR_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
