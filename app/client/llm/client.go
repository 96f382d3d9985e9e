package llm

import (
	"net/http"

	"biasmeter/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewClient builds the completion model for an OpenAI-compatible endpoint.
func NewClient(di *do.Injector) (llms.Model, error) {
	cfg := do.MustInvoke[*config.Config](di)

	client, err := newOpenAI(cfg.OpenAI)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func newOpenAI(cfg config.OpenAI) (*openai.LLM, error) {
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
		openai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.
			In("llm").
			With("base_url", cfg.BaseURL, "model", cfg.Model).
			Errorf("failed to create openai client: %w", err)
	}

	return client, nil
}
