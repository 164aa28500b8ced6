package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"vqtlbrowser/internal/errors"
)

// Defaults point at the GSTT1 browser deployment on the cluster.
const (
	DefaultResultsPath   = "/project2/mstephens/aksarkar/projects/singlecell-qtl/data/scqtl-mapping/variance.txt.gz"
	DefaultDatabaseDSN   = "/project2/mstephens/aksarkar/projects/singlecell-qtl/browser/browser.db"
	DefaultPosteriorPath = "/scratch/midway2/aksarkar/ideas/ipsc-gstt1-post.json.gz"
	DefaultGene          = "ENSG00000184674"
	DefaultTopN          = 5
	DefaultTail          = 800
	DefaultJitterScale   = 0.1
	DefaultPort          = 5007
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
	S3       S3Config       `yaml:"s3"`
	LogLevel string         `yaml:"log_level"`
}

// DataConfig holds the input locations and the gene being browsed
type DataConfig struct {
	ResultsPath    string `yaml:"results"`
	DatabaseDriver string `yaml:"db_driver"`
	DatabaseDSN    string `yaml:"db_dsn"`
	PosteriorPath  string `yaml:"posterior"`
	Gene           string `yaml:"gene"`
	TopN           int    `yaml:"top_n"`
	NotesPath      string `yaml:"notes"`
}

// AnalysisConfig holds posterior summary settings
type AnalysisConfig struct {
	// Tail is the number of trailing draws kept per chain; earlier draws are burn-in.
	Tail        int     `yaml:"tail"`
	JitterScale float64 `yaml:"jitter_scale"`
	// Seed 0 means seed from the clock.
	Seed int64 `yaml:"seed"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	TemplateDir string `yaml:"template_dir"`
}

// S3Config holds settings for s3:// input locations
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Addr returns host:port for net/http
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Default returns the GSTT1 deployment configuration
func Default() *Config {
	return &Config{
		Data: DataConfig{
			ResultsPath:    DefaultResultsPath,
			DatabaseDriver: "sqlite",
			DatabaseDSN:    DefaultDatabaseDSN,
			PosteriorPath:  DefaultPosteriorPath,
			Gene:           DefaultGene,
			TopN:           DefaultTopN,
		},
		Analysis: AnalysisConfig{
			Tail:        DefaultTail,
			JitterScale: DefaultJitterScale,
		},
		Server: ServerConfig{
			Port:  DefaultPort,
			Debug: true,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// VQTL_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	config := Default()

	if path := os.Getenv("VQTL_CONFIG"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	applyEnv(config)

	if config.Server.Host == "" {
		config.Server.Host = ResolveHostAddress()
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadFile(path string, config *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(content, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

func applyEnv(config *Config) {
	config.Data.ResultsPath = getEnvOrDefault("VQTL_RESULTS", config.Data.ResultsPath)
	config.Data.DatabaseDriver = getEnvOrDefault("VQTL_DB_DRIVER", config.Data.DatabaseDriver)
	config.Data.DatabaseDSN = getEnvOrDefault("VQTL_DB_DSN", config.Data.DatabaseDSN)
	config.Data.PosteriorPath = getEnvOrDefault("VQTL_POSTERIOR", config.Data.PosteriorPath)
	config.Data.Gene = getEnvOrDefault("VQTL_GENE", config.Data.Gene)
	config.Data.TopN = getEnvIntOrDefault("VQTL_TOP_N", config.Data.TopN)
	config.Data.NotesPath = getEnvOrDefault("VQTL_NOTES", config.Data.NotesPath)

	config.Analysis.Tail = getEnvIntOrDefault("VQTL_TAIL", config.Analysis.Tail)
	config.Analysis.JitterScale = getEnvFloatOrDefault("VQTL_JITTER_SCALE", config.Analysis.JitterScale)
	config.Analysis.Seed = int64(getEnvIntOrDefault("VQTL_SEED", int(config.Analysis.Seed)))

	config.Server.Host = getEnvOrDefault("HOST", config.Server.Host)
	config.Server.Port = getEnvIntOrDefault("PORT", config.Server.Port)
	config.Server.Debug = getEnvBoolOrDefault("VQTL_DEBUG", config.Server.Debug)
	config.Server.TemplateDir = getEnvOrDefault("VQTL_TEMPLATE_DIR", config.Server.TemplateDir)

	config.S3.Region = getEnvOrDefault("VQTL_S3_REGION", config.S3.Region)
	config.S3.Endpoint = getEnvOrDefault("VQTL_S3_ENDPOINT", config.S3.Endpoint)
	config.S3.PathStyle = getEnvBoolOrDefault("VQTL_S3_PATH_STYLE", config.S3.PathStyle)

	config.LogLevel = getEnvOrDefault("LOG_LEVEL", config.LogLevel)
}

// Validate checks the fields every entry point depends on
func Validate(config *Config) error {
	if config.Data.ResultsPath == "" {
		return errors.ConfigInvalid("results path is required")
	}
	if config.Data.DatabaseDSN == "" {
		return errors.ConfigInvalid("database DSN is required")
	}
	switch config.Data.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return errors.ConfigInvalid("database driver must be sqlite or postgres, got " + strconv.Quote(config.Data.DatabaseDriver))
	}
	if config.Data.PosteriorPath == "" {
		return errors.ConfigInvalid("posterior path is required")
	}
	if strings.TrimSpace(config.Data.Gene) == "" {
		return errors.ConfigInvalid("gene is required")
	}
	if config.Data.TopN < 1 {
		return errors.ConfigInvalid("top N must be at least 1")
	}
	if config.Analysis.Tail < 1 {
		return errors.ConfigInvalid("posterior tail must be at least 1")
	}
	if config.Analysis.JitterScale <= 0 {
		return errors.ConfigInvalid("jitter scale must be positive")
	}
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return errors.ConfigInvalid("port must be between 1 and 65535")
	}
	return nil
}

// ResolveHostAddress returns the first IPv4 address the machine's own hostname
// resolves to, falling back to the loopback address.
func ResolveHostAddress() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "127.0.0.1"
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	return "127.0.0.1"
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
