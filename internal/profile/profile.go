package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where smartchat stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Dialog engine configuration
	EngineURL     string        // SMARTCHAT_ENGINE_URL: message endpoint of the dialog-decision engine
	EngineTimeout time.Duration // SMARTCHAT_ENGINE_TIMEOUT_SECONDS (default: 30)

	// ERP backend configuration
	ERPBaseURL string        // SMARTCHAT_ERP_BASE_URL (default: http://attsim.mybluemix.net)
	ERPTimeout time.Duration // SMARTCHAT_ERP_TIMEOUT_SECONDS (default: 15)

	// Enrichment (emotion/entity extraction) configuration
	AIAPIKey  string // SMARTCHAT_AI_API_KEY
	AIBaseURL string // SMARTCHAT_AI_BASE_URL (default: https://api.openai.com/v1)
	AIModel   string // SMARTCHAT_AI_MODEL (default: gpt-4o-mini)

	// DemoProfile enables the webui simulation path that overwrites the
	// channel profile with a fixed demo customer. Defaults to true outside
	// prod so the web demo works without a real channel in front.
	DemoProfile bool // SMARTCHAT_DEMO_PROFILE

	// Optional Redis cache / distributed lock configuration.
	// The server runs with the in-memory cache when RedisAddr is empty.
	RedisAddr     string // SMARTCHAT_REDIS_ADDR
	RedisPassword string // SMARTCHAT_REDIS_PASSWORD
	RedisDB       int    // SMARTCHAT_REDIS_DB
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEngineConfigured returns true if a dialog engine endpoint is set.
// Turns cannot be processed without one.
func (p *Profile) IsEngineConfigured() bool {
	return p.EngineURL != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true"
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from SMARTCHAT_* environment variables.
func (p *Profile) FromEnv() {
	p.EngineURL = os.Getenv("SMARTCHAT_ENGINE_URL")
	p.EngineTimeout = time.Duration(getIntEnvOrDefault("SMARTCHAT_ENGINE_TIMEOUT_SECONDS", 30)) * time.Second

	p.ERPBaseURL = getEnvOrDefault("SMARTCHAT_ERP_BASE_URL", "http://attsim.mybluemix.net")
	p.ERPTimeout = time.Duration(getIntEnvOrDefault("SMARTCHAT_ERP_TIMEOUT_SECONDS", 15)) * time.Second

	p.AIAPIKey = os.Getenv("SMARTCHAT_AI_API_KEY")
	p.AIBaseURL = getEnvOrDefault("SMARTCHAT_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIModel = getEnvOrDefault("SMARTCHAT_AI_MODEL", "gpt-4o-mini")

	p.DemoProfile = getBoolEnvOrDefault("SMARTCHAT_DEMO_PROFILE", p.Mode != "prod")

	p.RedisAddr = os.Getenv("SMARTCHAT_REDIS_ADDR")
	p.RedisPassword = os.Getenv("SMARTCHAT_REDIS_PASSWORD")
	p.RedisDB = getIntEnvOrDefault("SMARTCHAT_REDIS_DB", 0)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/smartchat"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("smartchat_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
