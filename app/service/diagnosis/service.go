package diagnosis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"biasmeter/app/config"
	"biasmeter/app/util/metrics"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/llms"
)

type Service struct {
	cfg    *config.Config
	model  llms.Model
	parser *Parser
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[llms.Model](di),
	), nil
}

func NewService(cfg *config.Config, model llms.Model) *Service {
	return &Service{
		cfg:    cfg,
		model:  model,
		parser: NewParser(cfg.Diagnosis.Strict),
	}
}

// Diagnose runs one diagnosis of text charged against sess.
//
// The session counter is incremented once the model has answered, so a
// response that fails to parse still uses up an attempt while a failed
// completion call does not.
func (s *Service) Diagnose(ctx context.Context, sess Session, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.DiagnosesTotal.WithLabelValues(metrics.OutcomeEmptyInput).Inc()
		return nil, oops.In("diagnosis").Code(CodeEmptyInput).Wrap(ErrEmptyInput)
	}

	sess.Lock()
	defer sess.Unlock()

	if !sess.CanDiagnose() {
		metrics.DiagnosesTotal.WithLabelValues(metrics.OutcomeLimitExceeded).Inc()
		return nil, oops.
			In("diagnosis").
			Code(CodeLimitExceeded).
			With("count", sess.Count(), "limit", sess.Limit()).
			Wrap(ErrLimitExceeded)
	}

	raw, err := s.complete(ctx, BuildPrompt(text))
	if err != nil {
		metrics.DiagnosesTotal.WithLabelValues(metrics.OutcomeCompletionFailed).Inc()
		return nil, oops.
			In("diagnosis").
			Code(CodeCompletionFailed).
			With("model", s.cfg.OpenAI.Model).
			Wrap(fmt.Errorf("%w: %w", ErrCompletionFailed, err))
	}

	sess.RecordDiagnosis()

	result, err := s.parser.Parse(raw)
	if err != nil {
		metrics.DiagnosesTotal.WithLabelValues(metrics.OutcomeMalformed).Inc()
		slog.Warn("Failed to parse diagnosis",
			"error", err,
			"count", sess.Count(),
		)
		return nil, err
	}

	sess.AddResult(*result)
	metrics.DiagnosesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	slog.Info("Diagnosed text",
		"direction", result.Direction,
		"intensity", result.Intensity,
		"count", sess.Count(),
		"limit", sess.Limit(),
	)

	return result, nil
}

func (s *Service) Limit() int {
	return s.cfg.Session.Limit
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpenAI.Timeout)
	defer cancel()

	opts := []llms.CallOption{
		llms.WithTemperature(s.cfg.OpenAI.Temperature),
	}
	if s.cfg.OpenAI.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.cfg.OpenAI.MaxTokens))
	}

	start := time.Now()
	result, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt, opts...)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	result = strings.Trim(result, "`")

	return strings.TrimSpace(result), nil
}
