package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	OpenAI    OpenAI    `yaml:"openai"`
	Session   Session   `yaml:"session"`
	Diagnosis Diagnosis `yaml:"diagnosis"`
	Chart     Chart     `yaml:"chart"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required,url"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-3.5-turbo" validate:"required"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" example:"1" validate:"gte=0,lte=2"`
	// Completion token cap, 0 leaves it to the provider
	MaxTokens int `yaml:"max_tokens" example:"500" validate:"gte=0"`
	// Timeout of a single completion call
	Timeout time.Duration `yaml:"timeout" example:"30s" validate:"gt=0"`
}

type HTTP struct {
	// Address to listen on
	Listen string `yaml:"listen" example:":8080" validate:"required"`
	// Mark the session cookie as Secure
	CookieSecure bool `yaml:"cookie_secure" example:"false"`
}

type Session struct {
	// Diagnoses allowed per session
	Limit int `yaml:"limit" example:"5" validate:"gte=1"`
	// Idle time after which a session is forgotten
	Expiration time.Duration `yaml:"expiration" example:"24h" validate:"gt=0"`
}

type Diagnosis struct {
	// Require the expected labels on every line of the model output
	Strict bool `yaml:"strict" example:"false"`
}

type Chart struct {
	// Default image format of the chart
	Format string `yaml:"format" example:"svg" validate:"oneof=svg png"`
	// Optional OpenType/TrueType font with CJK glyphs
	FontPath string `yaml:"font_path" example:"./fonts/NotoSansCJKjp-Regular.otf"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	// Temperature 0 is a valid setting, so its default is set before decoding.
	result := Config{
		OpenAI: OpenAI{Temperature: 1},
	}

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.setDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) setDefaults() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-3.5-turbo"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 30 * time.Second
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Session.Limit == 0 {
		c.Session.Limit = 5
	}
	if c.Session.Expiration == 0 {
		c.Session.Expiration = 24 * time.Hour
	}
	if c.Chart.Format == "" {
		c.Chart.Format = "svg"
	}
}
