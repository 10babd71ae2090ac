// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Ledger   LedgerConfig
}

type ServerConfig struct {
	Port           string
	DrivePort      string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string // console or json
}

type DatabaseConfig struct {
	Driver   string // postgres (lib/pq) or pgx
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the key/value connection string understood by both drivers
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	MappingTTLSeconds int
	LockTTLSeconds    int
}

type PipelineConfig struct {
	Mode               string
	SkipRows           int
	SKUColumn          string
	QuantityColumn     string
	PalletsColumn      string
	WindowDays         int
	DecimalSeparator   string // "," for German exports, "."
	AsOf               string // yyyy-mm-dd override of the reference date, mostly for replays
	Timezone           string
	MappingURI         string
	CatalogFile        string
	IntermediateDir    string
	PersistDebugLayers bool
	IncludeIdleSKUs    bool
	WorkerCount        int
}

type StorageConfig struct {
	Backend   string // sevalla or minio, empty disables s3:// sources
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	CredentialsFile string
	FolderID        string
}

// Credentials returns the service account JSON, reading CredentialsFile when no inline value is set
func (c DriveConfig) Credentials() (string, error) {
	if c.CredentialsJSON != "" {
		return c.CredentialsJSON, nil
	}
	if c.CredentialsFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return "", fmt.Errorf("read drive credentials: %w", err)
	}
	return string(data), nil
}

type LedgerConfig struct {
	Backend string // postgres or memory
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper(viper.GetViper())
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DRIVE_API_PORT", "8081")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "warenbestand")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_MAPPING_TTL_SECONDS", 300)
	v.SetDefault("CACHE_LOCK_TTL_SECONDS", 30)
	v.SetDefault("PIPELINE_MODE", "full")
	v.SetDefault("PIPELINE_SKIP_ROWS", 7)
	v.SetDefault("PIPELINE_SKU_COLUMN", "Artikelnummer")
	v.SetDefault("PIPELINE_QUANTITY_COLUMN", "Anzahl")
	v.SetDefault("PIPELINE_PALLETS_COLUMN", "")
	v.SetDefault("PIPELINE_WINDOW_DAYS", 30)
	v.SetDefault("PIPELINE_DECIMAL_SEPARATOR", ",")
	v.SetDefault("PIPELINE_AS_OF", "")
	v.SetDefault("PIPELINE_TIMEZONE", "Europe/Berlin")
	v.SetDefault("PIPELINE_MAPPING_URI", "")
	v.SetDefault("PIPELINE_CATALOG_FILE", "")
	v.SetDefault("PIPELINE_INTERMEDIATE_DIR", "./data/intermediate")
	v.SetDefault("PIPELINE_PERSIST_DEBUG_LAYERS", false)
	v.SetDefault("PIPELINE_INCLUDE_IDLE_SKUS", false)
	v.SetDefault("PIPELINE_WORKER_COUNT", 4)
	v.SetDefault("STORAGE_BACKEND", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("LEDGER_BACKEND", "postgres")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			DrivePort:      v.GetString("DRIVE_API_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
		},
		Cache: CacheConfig{
			Enabled:           v.GetBool("CACHE_ENABLED"),
			RedisURL:          v.GetString("REDIS_URL"),
			RedisHost:         v.GetString("REDIS_HOST"),
			RedisPort:         v.GetString("REDIS_PORT"),
			RedisPassword:     v.GetString("REDIS_PASSWORD"),
			RedisDB:           v.GetInt("REDIS_DB"),
			MappingTTLSeconds: v.GetInt("CACHE_MAPPING_TTL_SECONDS"),
			LockTTLSeconds:    v.GetInt("CACHE_LOCK_TTL_SECONDS"),
		},
		Pipeline: PipelineConfig{
			Mode:               v.GetString("PIPELINE_MODE"),
			SkipRows:           v.GetInt("PIPELINE_SKIP_ROWS"),
			SKUColumn:          v.GetString("PIPELINE_SKU_COLUMN"),
			QuantityColumn:     v.GetString("PIPELINE_QUANTITY_COLUMN"),
			PalletsColumn:      v.GetString("PIPELINE_PALLETS_COLUMN"),
			WindowDays:         v.GetInt("PIPELINE_WINDOW_DAYS"),
			DecimalSeparator:   v.GetString("PIPELINE_DECIMAL_SEPARATOR"),
			AsOf:               v.GetString("PIPELINE_AS_OF"),
			Timezone:           v.GetString("PIPELINE_TIMEZONE"),
			MappingURI:         v.GetString("PIPELINE_MAPPING_URI"),
			CatalogFile:        v.GetString("PIPELINE_CATALOG_FILE"),
			IntermediateDir:    v.GetString("PIPELINE_INTERMEDIATE_DIR"),
			PersistDebugLayers: v.GetBool("PIPELINE_PERSIST_DEBUG_LAYERS"),
			IncludeIdleSKUs:    v.GetBool("PIPELINE_INCLUDE_IDLE_SKUS"),
			WorkerCount:        v.GetInt("PIPELINE_WORKER_COUNT"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS"),
			CredentialsFile: v.GetString("GOOGLE_DRIVE_CREDENTIALS_FILE"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
		Ledger: LedgerConfig{
			Backend: strings.ToLower(v.GetString("LEDGER_BACKEND")),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
