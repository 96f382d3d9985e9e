package agent

import (
	"log/slog"

	"biasmeter/app/config"
	"biasmeter/app/service/diagnosis"
	"biasmeter/app/service/session"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	serverName    = "biasmeter"
	serverVersion = "1.0.0"
)

// Service serves the diagnosis tools over MCP stdio. The whole process is a
// single session, so the diagnosis limit applies to the connected client.
type Service struct {
	diagnosisSvc *diagnosis.Service
	sess         *session.Session

	server   *server.MCPServer
	adapters []*mcpToolAdapter
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(do.MustInvoke[*diagnosis.Service](di), cfg.Session.Limit), nil
}

func NewService(diagnosisSvc *diagnosis.Service, limit int) *Service {
	s := &Service{
		diagnosisSvc: diagnosisSvc,
		sess:         session.New(uuid.NewString(), limit),
		server: server.NewMCPServer(serverName, serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	for _, tool := range s.createDiagnosisTools() {
		adapter := &mcpToolAdapter{
			tool:     tool,
			argument: tool.argument,
		}
		s.adapters = append(s.adapters, adapter)
		s.server.AddTool(adapter.Definition(), adapter.Handle)
	}

	return s
}

func (s *Service) Serve() error {
	slog.Info("MCP server started", "session", s.sess.ID(), "limit", s.sess.Limit())

	return server.ServeStdio(s.server)
}
