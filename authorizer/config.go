package authorizer

import (
    "os"
    "strconv"
    "strings"
)

// Config is a configuration for the authorizer application
type Config struct {
    HTTPAddr    string
    ISO8583Addr string

    // RepoBackend selects the card store: "pg" or "mem". The memory backend
    // is refused unless AllowMemBackend is set.
    RepoBackend     string
    AllowMemBackend bool
    DBDSN           string
    DBMaxOpenConns  int
    DBMaxIdleConns  int

    // APIUser and APIPassword guard the HTTP API with Basic auth.
    APIUser     string
    APIPassword string

    // MaxDebitRetries bounds how many times an authorization is re-evaluated
    // after losing a concurrent update on the same card.
    MaxDebitRetries int

    KafkaBrokers []string
    KafkaTopic   string

    LogLevel string
}

func DefaultConfig() *Config {
    return &Config{
        HTTPAddr:        "localhost:8080",
        ISO8583Addr:     "localhost:8583",
        RepoBackend:     "pg",
        DBMaxOpenConns:  10,
        DBMaxIdleConns:  5,
        APIUser:         "username",
        APIPassword:     "password",
        MaxDebitRetries: 50,
        KafkaTopic:      "transaction_authorized",
        LogLevel:        "info",
    }
}

// LoadConfig reads the configuration from the environment on top of
// DefaultConfig.
func LoadConfig() *Config {
    cfg := DefaultConfig()
    cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
    cfg.ISO8583Addr = getenv("ISO8583_ADDR", cfg.ISO8583Addr)
    cfg.RepoBackend = getenv("REPO_BACKEND", cfg.RepoBackend)
    cfg.AllowMemBackend = getenv("ALLOW_MEM_BACKEND", "false") == "true"
    cfg.DBDSN = getenv("DB_DSN", cfg.DBDSN)
    cfg.DBMaxOpenConns = getenvInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
    cfg.DBMaxIdleConns = getenvInt("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
    cfg.APIUser = getenv("API_USER", cfg.APIUser)
    cfg.APIPassword = getenv("API_PASSWORD", cfg.APIPassword)
    cfg.MaxDebitRetries = getenvInt("MAX_DEBIT_RETRIES", cfg.MaxDebitRetries)
    if brokers := getenv("KAFKA_BROKERS", ""); brokers != "" {
        for _, b := range strings.Split(brokers, ",") {
            if b = strings.TrimSpace(b); b != "" {
                cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
            }
        }
    }
    cfg.KafkaTopic = getenv("KAFKA_TOPIC", cfg.KafkaTopic)
    cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
    return cfg
}

func getenv(k, def string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return def
}

func getenvInt(k string, def int) int {
    if v := os.Getenv(k); v != "" {
        if i, err := strconv.Atoi(v); err == nil {
            return i
        }
    }
    return def
}
