package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

var knownStores = []string{StoreSQLite, StorePostgres, StoreRedis}

// Validate checks settings that would otherwise fail late, mid-request.
func (s *Settings) Validate() error {
	if err := ValidateTimeout(s.ChunkTimeout(), "transcription"); err != nil {
		return err
	}
	if err := ValidateTimeout(s.HTTPTimeout(), "OpenAI HTTP"); err != nil {
		return err
	}
	if err := s.validateStore(); err != nil {
		return err
	}
	if s.Quota.DefaultSeconds < 0 {
		return fmt.Errorf("default quota cannot be negative")
	}
	if s.Media.MaxFileSizeMB <= 0 {
		return fmt.Errorf("file size limit must be positive")
	}
	if s.HTTP.PaymentPageURL != "" {
		if err := ValidateURL(s.HTTP.PaymentPageURL, "payment page"); err != nil {
			return err
		}
	}
	if s.RequireAPIKey {
		if err := ValidateAPIKey(s.OpenAI.APIKey); err != nil {
			return err
		}
	}
	return nil
}

func (s *Settings) validateStore() error {
	if !lo.Contains(knownStores, s.Quota.Store) {
		return fmt.Errorf("unknown quota store %q (want one of %s)", s.Quota.Store, strings.Join(knownStores, ", "))
	}
	switch s.Quota.Store {
	case StoreSQLite:
		if s.Quota.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite quota store")
		}
	case StorePostgres:
		if s.Quota.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres quota store")
		}
	case StoreRedis:
		if s.Quota.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis quota store")
		}
	}
	return nil
}

// ValidateTimeout validates timeout duration
func ValidateTimeout(timeout time.Duration, name string) error {
	if timeout <= 0 {
		return fmt.Errorf("%s timeout must be positive", name)
	}
	if timeout > 30*time.Minute {
		return fmt.Errorf("%s timeout too large (max 30 minutes)", name)
	}
	return nil
}

// ValidateAPIKey validates OpenAI API key format
func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		return fmt.Errorf("invalid OPENAI_API_KEY format: must start with 'sk-'")
	}
	if len(apiKey) < 20 {
		return fmt.Errorf("invalid OPENAI_API_KEY format: too short")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(url string, name string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%s URL must start with http:// or https://", name)
	}
	return nil
}
