package openai

import (
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ClientConfig holds what is needed to reach the OpenAI API.
type ClientConfig struct {
	APIKey       string
	Organization string
	BaseURL      string
	// HTTPTimeout bounds every request, including ones the caller has stopped waiting for.
	HTTPTimeout time.Duration
}

// NewClient builds a client for the given configuration.
func NewClient(cfg ClientConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Organization != "" {
		clientConfig.OrgID = cfg.Organization
	}
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return openai.NewClientWithConfig(clientConfig)
}
