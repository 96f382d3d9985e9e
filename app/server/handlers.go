package server

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"biasmeter/app/service/chart"
	"biasmeter/app/service/diagnosis"
	"biasmeter/app/service/session"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

type notice struct {
	Kind    string
	Message string
}

type page struct {
	Text     string
	Notice   *notice
	Result   *diagnosis.Result
	ChartURL string
	Count    int
	Limit    int
	History  []session.Entry
}

type diagnoseRequest struct {
	Text string `json:"text" validate:"required"`
}

type diagnoseResponse struct {
	Result    *diagnosis.Result `json:"result,omitempty"`
	Message   string            `json:"message"`
	Error     string            `json:"error,omitempty"`
	Count     int               `json:"count"`
	Limit     int               `json:"limit"`
	Remaining int               `json:"remaining"`
}

func (s *Server) currentSession(c *fiber.Ctx) (*session.Session, error) {
	cookie, err := s.cookies.Get(c)
	if err != nil {
		return nil, oops.In("server").Errorf("failed to get session: %w", err)
	}

	id := cookie.ID()
	if err = cookie.Save(); err != nil {
		return nil, oops.In("server").Errorf("failed to save session: %w", err)
	}

	return s.sessions.Get(id), nil
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}

	return c.Render("index", newPage(sess.Snapshot()))
}

func (s *Server) handleDiagnoseForm(c *fiber.Ctx) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}

	text := c.FormValue("text")
	result, err := s.diagnosisSvc.Diagnose(c.UserContext(), sess, text)

	p := newPage(sess.Snapshot())
	p.Text = text

	if err != nil {
		s.logDiagnoseError(sess, err)
		p.Notice = &notice{
			Kind:    noticeKind(err),
			Message: diagnosis.UserMessage(err, p.Limit),
		}

		return c.Render("index", p)
	}

	p.Notice = &notice{Kind: "success", Message: diagnosis.MessageSuccess}
	p.Result = result
	p.ChartURL = chartURL(s.chartSvc.DefaultFormat(), result)

	return c.Render("index", p)
}

func (s *Server) handleDiagnoseAPI(c *fiber.Ctx) error {
	var req diagnoseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}

	result, err := s.diagnosisSvc.Diagnose(c.UserContext(), sess, req.Text)
	snap := sess.Snapshot()

	resp := diagnoseResponse{
		Count:     snap.Count,
		Limit:     snap.Limit,
		Remaining: snap.Remaining,
	}

	if err != nil {
		s.logDiagnoseError(sess, err)
		resp.Error = errorCode(err)
		resp.Message = diagnosis.UserMessage(err, snap.Limit)

		return c.Status(statusCode(err)).JSON(resp)
	}

	resp.Result = result
	resp.Message = diagnosis.MessageSuccess

	return c.JSON(resp)
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}

	return c.JSON(sess.Snapshot())
}

func (s *Server) handleChart(format string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		x, err := queryScore(c, "x")
		if err != nil {
			return err
		}

		y, err := queryScore(c, "y")
		if err != nil {
			return err
		}

		data, err := s.chartSvc.Render(x, y, format)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, chart.ContentType(format))
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")

		return c.Send(data)
	}
}

func queryScore(c *fiber.Ctx, key string) (float64, error) {
	value, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be a finite number")
	}

	return value, nil
}

func (s *Server) logDiagnoseError(sess *session.Session, err error) {
	if errors.Is(err, diagnosis.ErrCompletionFailed) {
		slog.Error("Diagnosis failed", "session", sess.ID(), "error", err)
		return
	}

	slog.Warn("Diagnosis rejected", "session", sess.ID(), "error", err)
}

func newPage(snap session.Snapshot) page {
	return page{
		Count:   snap.Count,
		Limit:   snap.Limit,
		History: snap.History,
	}
}

func chartURL(format string, result *diagnosis.Result) string {
	return fmt.Sprintf("/chart.%s?x=%s&y=%s",
		format,
		strconv.FormatFloat(result.Direction, 'g', -1, 64),
		strconv.FormatFloat(result.Intensity, 'g', -1, 64),
	)
}

func noticeKind(err error) string {
	switch {
	case errors.Is(err, diagnosis.ErrLimitExceeded), errors.Is(err, diagnosis.ErrEmptyInput):
		return "warning"
	default:
		return "error"
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, diagnosis.ErrEmptyInput):
		return fiber.StatusBadRequest
	case errors.Is(err, diagnosis.ErrLimitExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, diagnosis.ErrMalformedResponse):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, diagnosis.ErrCompletionFailed):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, diagnosis.ErrEmptyInput):
		return diagnosis.CodeEmptyInput
	case errors.Is(err, diagnosis.ErrLimitExceeded):
		return diagnosis.CodeLimitExceeded
	case errors.Is(err, diagnosis.ErrMalformedResponse):
		return diagnosis.CodeMalformedResponse
	case errors.Is(err, diagnosis.ErrCompletionFailed):
		return diagnosis.CodeCompletionFailed
	default:
		return "internal"
	}
}
