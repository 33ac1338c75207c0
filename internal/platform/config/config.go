package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config carries the deployment-provided settings of the service.
type Config struct {
	Port string

	// StorageBackend selects the record store: "memory" or "postgres".
	StorageBackend string
	DatabaseURL    string

	// TesseraPrefix is the prefix of card identifiers, e.g. "GMC" in "GMC-2025-3".
	TesseraPrefix string
	// AdultFee is the default membership fee applied when none is given; minors
	// always default to 0.
	AdultFee decimal.Decimal

	// PageSize is the fixed page size of directory views.
	PageSize int
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		StorageBackend: getenv("STORAGE_BACKEND", "memory"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		TesseraPrefix:  getenv("TESSERA_PREFIX", "GMC"),
		AdultFee:       decimal.RequireFromString("30.00"),
		PageSize:       20,
	}

	if v := os.Getenv("ADULT_FEE"); v != "" {
		fee, err := decimal.NewFromString(v)
		if err != nil || fee.IsNegative() {
			return Config{}, fmt.Errorf("ADULT_FEE must be a non-negative decimal: %q", v)
		}
		cfg.AdultFee = fee
	}
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("PAGE_SIZE must be a positive integer: %q", v)
		}
		cfg.PageSize = n
	}
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required with STORAGE_BACKEND=postgres")
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
