package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrNoAPIKey is returned by NewAnthropic when no key is configured.
var ErrNoAPIKey = errors.New("oracle: anthropic API key is required")

// Config configures the hosted model.
type Config struct {
	APIKey      string        `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	Model       string        `yaml:"model" env:"ANTHROPIC_MODEL"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "claude-3-5-haiku-latest"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 300
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Anthropic is a Completer backed by the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	cfg    Config
}

// NewAnthropic builds a client for cfg. Extra request options (base URL,
// HTTP client) are passed through to the SDK.
func NewAnthropic(cfg Config, opts ...option.RequestOption) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg.SetDefaults()

	opts = append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}, opts...)
	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client, cfg: cfg}, nil
}

// Complete sends prompt as a single user message and returns the text of
// the reply.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(a.cfg.MaxTokens),
		Temperature: anthropic.Float(a.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
