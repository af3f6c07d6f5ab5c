// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアの実装種別
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	Port            string
	ServiceName     string
	ShutdownTimeout time.Duration

	// Store
	StoreDriver      string
	DBFile           string
	DatabaseURL      string
	DBConnectTimeout time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Rate Limit
	RateLimitPerMinute int
	RateLimitBurst     int

	// Logging
	LogLevel slog.Level

	// Events（AMQPURLが空ならイベント発行を無効にする）
	AMQPURL      string
	AMQPExchange string
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（デフォルト .env）が存在すれば先に読み込むが、既に設定済みの環境変数は上書きしない。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnvString("PORT", "10000"),
		ServiceName:        getEnvString("SERVICE_NAME", "lavoor-json"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		StoreDriver:        strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverFile)),
		DBFile:             getEnvString("DB_FILE", "db.json"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBConnectTimeout:   getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 60),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getEnvString("AMQP_EXCHANGE", "lavoor.events"),
	}

	switch cfg.StoreDriver {
	case StoreDriverFile:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (want %q or %q)", cfg.StoreDriver, StoreDriverFile, StoreDriverPostgres)
	}

	return cfg, nil
}

// loadEnvFile は .env 形式のファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は正の整数を読み込む。未設定・不正値・0以下はデフォルト値とする。
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を読み込む。空要素は除外する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// getEnvLevel は debug、info、warn、error のいずれかを読み込む。
func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
