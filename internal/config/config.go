package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var DefaultEnvConfig *envConfig

type envConfig struct {
	// database config
	DB_HOST              string
	DB_PORT              int
	DB_USER              string
	DB_PASSWORD          string
	DB_NAME              string
	DB_SSL_MODE          string
	DB_CONN_MAX_LIFETIME time.Duration
	DB_MAX_IDLE_CONNS    int
	DB_MAX_OPEN_CONNS    int
	// search and document stores
	ES_URL               string
	ES_SNIFF             bool
	DATASTORE_PROJECT_ID string
	// server config
	APP_PORT int
	// logger config
	LOG_FILE_PATH string
	// export defaults
	EXPORT_TYPE          string
	EXPORT_LOCALE        string
	EXPORT_CSV_DELIMITER string
	EXPORT_FILE_NAME     string
	EXPORT_GENERATED_BY  string
	EXPORT_TEMPLATE_DIR  string
}

// ErrNoEnvFile reports that no .env file was found. Defaults and the
// process environment are still loaded.
var ErrNoEnvFile = errors.New(".env file not found")

// LoadEnvConfig fills DefaultEnvConfig. A missing .env file yields
// ErrNoEnvFile after the config has been populated.
func LoadEnvConfig(files ...string) error {
	var loadErr error
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		loadErr = ErrNoEnvFile
	}

	DefaultEnvConfig = &envConfig{
		DB_HOST:              getEnvString("DB_HOST", "localhost"),
		DB_PORT:              getEnvInt("DB_PORT", 5432),
		DB_USER:              getEnvString("DB_USER", "postgres"),
		DB_PASSWORD:          getEnvString("DB_PASSWORD", "postgres"),
		DB_NAME:              getEnvString("DB_NAME", "postgres"),
		DB_SSL_MODE:          getEnvString("DB_SSL_MODE", "disable"),
		DB_CONN_MAX_LIFETIME: getEnvDuration("DB_CONN_MAX_LIFETIME", 20*time.Minute),
		DB_MAX_IDLE_CONNS:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DB_MAX_OPEN_CONNS:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
		ES_URL:               getEnvString("ES_URL", "http://localhost:9200"),
		ES_SNIFF:             getEnvBool("ES_SNIFF", false),
		DATASTORE_PROJECT_ID: getEnvString("DATASTORE_PROJECT_ID", ""),
		APP_PORT:             getEnvInt("APP_PORT", 8080),
		LOG_FILE_PATH:        getEnvString("LOG_FILE_PATH", ""),
		EXPORT_TYPE:          getEnvString("EXPORT_TYPE", "xlsx"),
		EXPORT_LOCALE:        getEnvString("EXPORT_LOCALE", "en"),
		EXPORT_CSV_DELIMITER: getEnvString("EXPORT_CSV_DELIMITER", ";"),
		EXPORT_FILE_NAME:     getEnvString("EXPORT_FILE_NAME", ""),
		EXPORT_GENERATED_BY:  getEnvString("EXPORT_GENERATED_BY", "system"),
		EXPORT_TEMPLATE_DIR:  getEnvString("EXPORT_TEMPLATE_DIR", "templates"),
	}
	return loadErr
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
