package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"biasmeter/app/service/diagnosis"
	"biasmeter/app/service/session"

	"github.com/tmc/langchaingo/tools"
)

var _ tools.Tool = (*agentTool)(nil)

type agentTool struct {
	name        string
	description string
	argument    string
	call        func(ctx context.Context, input string) (string, error)
}

func (m *agentTool) Name() string {
	return m.name
}

func (m *agentTool) Description() string {
	return m.description
}

func (m *agentTool) Call(ctx context.Context, input string) (string, error) {
	return m.call(ctx, input)
}

func (s *Service) createDiagnosisTools() []*agentTool {
	return []*agentTool{
		{
			name:        "diagnose",
			description: "Diagnose the political leaning and rhetorical intensity of a short Japanese statement (up to about 200 characters). Returns a direction score from -1.0 (conservative) to +1.0 (liberal), an intensity score from 0.0 (moderate) to 1.0 (extreme) and a comment.",
			argument:    "text",
			call: func(ctx context.Context, input string) (string, error) {
				result, err := s.diagnosisSvc.Diagnose(ctx, s.sess, input)
				if err != nil {
					slog.Warn("MCP diagnosis failed", "error", err)
					return "", errors.New(diagnosis.UserMessage(err, s.sess.Limit()))
				}

				return formatResult(result, s.sess.Snapshot()), nil
			},
		},
	}
}

func formatResult(result *diagnosis.Result, snap session.Snapshot) string {
	return fmt.Sprintf("傾向スコア: %g\n強さスコア: %g\nコメント: %s\n診断回数：%d/%d",
		result.Direction,
		result.Intensity,
		result.Comment,
		snap.Count,
		snap.Limit,
	)
}
