package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"biasmeter/app/config"
	"biasmeter/app/service/chart"
	"biasmeter/app/service/diagnosis"
	"biasmeter/app/service/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

const wellFormed = "傾向スコア: 0.7\n強さスコア: 0.4\nコメント: テスト"

type stubModel struct {
	response string
	err      error
}

func (m *stubModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response}},
	}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newTestServer(t *testing.T, model llms.Model) *Server {
	t.Helper()

	cfg := &config.Config{
		HTTP: config.HTTP{Listen: ":0"},
		OpenAI: config.OpenAI{
			Model:       "gpt-3.5-turbo",
			Temperature: 1,
			Timeout:     time.Second,
		},
		Session: config.Session{
			Limit:      5,
			Expiration: time.Hour,
		},
		Chart: config.Chart{Format: chart.FormatSVG},
	}

	chartSvc, err := chart.NewRenderer(cfg.Chart)
	require.NoError(t, err)

	srv, err := NewServer(
		cfg,
		session.NewMemoryStore(cfg.Session.Limit, cfg.Session.Expiration),
		diagnosis.NewService(cfg, model),
		chartSvc,
	)
	require.NoError(t, err)

	return srv
}

func doRequest(t *testing.T, srv *Server, req *http.Request, cookie *http.Cookie) (*http.Response, string) {
	t.Helper()

	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, string(body)
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			return c
		}
	}

	t.Fatalf("response has no %s cookie", cookieName)
	return nil
}

func apiDiagnose(t *testing.T, srv *Server, text string, cookie *http.Cookie) (*http.Response, diagnoseResponse) {
	t.Helper()

	body, err := json.Marshal(diagnoseRequest{Text: text})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/diagnose", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	resp, raw := doRequest(t, srv, req, cookie)

	var result diagnoseResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &result), raw)

	return resp, result
}

func TestIndexShowsCounter(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "政治バイアス検出ツール")
	assert.Contains(t, body, "診断回数：0/5")
	assert.NotNil(t, sessionCookie(t, resp))
}

func TestAPIDiagnoseSuccess(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, result := apiDiagnose(t, srv, "憲法改正は必要だと思う", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, result.Result)
	assert.Equal(t, 0.7, result.Result.Direction)
	assert.Equal(t, 0.4, result.Result.Intensity)
	assert.Equal(t, "テスト", result.Result.Comment)
	assert.Equal(t, diagnosis.MessageSuccess, result.Message)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 4, result.Remaining)
}

func TestAPIDiagnoseLimitPerSession(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, _ := apiDiagnose(t, srv, "text", nil)
	cookie := sessionCookie(t, resp)

	for i := 2; i <= 5; i++ {
		resp, result := apiDiagnose(t, srv, "text", cookie)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, i, result.Count)
	}

	resp, result := apiDiagnose(t, srv, "text", cookie)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, diagnosis.CodeLimitExceeded, result.Error)
	assert.Equal(t, "このプロトタイプでは、1人あたり最大5回まで診断できます。", result.Message)
	assert.Equal(t, 5, result.Count)
	assert.Nil(t, result.Result)

	// Another browser has its own counter.
	resp, result = apiDiagnose(t, srv, "text", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, result.Count)
}

func TestAPIDiagnoseMalformed(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: "0.7\n0.4\nテスト"})

	resp, result := apiDiagnose(t, srv, "text", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, diagnosis.CodeMalformedResponse, result.Error)
	assert.Equal(t, diagnosis.MessageMalformedResponse, result.Message)
	assert.Equal(t, 1, result.Count)
}

func TestAPIDiagnoseNonFiniteScoreKeepsSessionReadable(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: "傾向スコア: NaN\n強さスコア: 0.4\nコメント: x"})

	resp, result := apiDiagnose(t, srv, "text", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, diagnosis.CodeMalformedResponse, result.Error)
	assert.Equal(t, 1, result.Count)

	cookie := sessionCookie(t, resp)

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/session", nil), cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Equal(t, 1, snap.Count)
	assert.Empty(t, snap.History)
}

func TestAPIDiagnoseCompletionFailure(t *testing.T) {
	srv := newTestServer(t, &stubModel{err: errors.New("connection refused")})

	resp, result := apiDiagnose(t, srv, "text", nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, diagnosis.CodeCompletionFailed, result.Error)
	assert.Equal(t, 0, result.Count)
}

func TestAPIDiagnoseEmptyText(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, _ := doRequest(t, srv, func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/diagnose", strings.NewReader(`{"text":""}`))
		req.Header.Set("Content-Type", "application/json")
		return req
	}(), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, result := apiDiagnose(t, srv, "   ", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, diagnosis.CodeEmptyInput, result.Error)
	assert.Equal(t, 0, result.Count)
}

func TestAPIDiagnoseInvalidBody(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	req := httptest.NewRequest(http.MethodPost, "/api/diagnose", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")

	resp, body := doRequest(t, srv, req, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "invalid request body")
}

func TestFormDiagnoseRendersResult(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	form := url.Values{"text": {"夫婦別姓制度は導入されるべき"}}
	req := httptest.NewRequest(http.MethodPost, "/diagnose", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body := doRequest(t, srv, req, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, diagnosis.MessageSuccess)
	assert.Contains(t, body, "0.7")
	assert.Contains(t, body, "テスト")
	assert.Contains(t, body, "/chart.svg?x=0.7")
	assert.Contains(t, body, "診断回数：1/5")
	assert.Contains(t, body, "これまでの診断")
}

func TestFormDiagnoseShowsParseError(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: "no structure at all"})

	form := url.Values{"text": {"text"}}
	req := httptest.NewRequest(http.MethodPost, "/diagnose", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body := doRequest(t, srv, req, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, diagnosis.MessageMalformedResponse)
	assert.Contains(t, body, "診断回数：1/5")
	assert.NotContains(t, body, "/chart.svg")
}

func TestSessionEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, _ := apiDiagnose(t, srv, "text", nil)
	cookie := sessionCookie(t, resp)

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/session", nil), cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 5, snap.Limit)
	assert.Equal(t, 4, snap.Remaining)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "テスト", snap.History[0].Comment)
}

func TestChartEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/chart.svg?x=0.7&y=0.4", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<svg")

	resp, _ = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/chart.png?x=-0.5&y=0.1", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	for _, query := range []string{"x=left&y=0.4", "x=NaN&y=0.4", "x=0.1&y=Inf", "x=-infinity&y=0.4"} {
		resp, _ = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/chart.svg?"+query, nil), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &stubModel{response: wellFormed})

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	apiDiagnose(t, srv, "text", nil)

	resp, body = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "biasmeter_diagnoses_total")
}
