package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ZanzyTHEbar/video-studio/studio/config"
	"github.com/ZanzyTHEbar/video-studio/studio/enhance"
	"github.com/ZanzyTHEbar/video-studio/studio/gallery"
	"github.com/ZanzyTHEbar/video-studio/studio/generation"
	"github.com/ZanzyTHEbar/video-studio/studio/intent"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline/adapters"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

type ServerTestSuite struct {
	suite.Suite
	orch   *pipeline.Orchestrator
	router http.Handler
	detach func()
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	classifier := intent.NewClassifier(intent.NewLexicon(config.DefaultGenerationVerbs, config.DefaultModificationVerbs))
	enhancer := enhance.NewService(enhance.Config{
		Resolution: "1920x1080",
		Keywords: enhance.Keywords{
			Subjects:     config.DefaultSubjects,
			Actions:      config.DefaultActions,
			Settings:     config.DefaultSettings,
			Abstract:     config.DefaultAbstractKeywords,
			Modification: config.DefaultModificationVerbs,
		},
	}, adapters.NoLatency{}, nil)
	generator := generation.NewService(adapters.NoLatency{})
	stats := adapters.NewLatencyStats(100)

	s.orch = pipeline.NewOrchestrator(classifier, enhancer, generator, pipeline.DefaultPolicy(),
		pipeline.WithRecorder(stats))
	g := gallery.New()
	s.detach = g.Attach(s.orch)

	h := NewHandler(s.orch, g, stats, zerolog.Nop(), 16)
	s.router = NewRouter(zerolog.Nop(), config.ServerConfig{}, h)
}

func (s *ServerTestSuite) TearDownTest() {
	s.detach()
	s.Require().NoError(s.orch.Close(context.Background()))
}

func (s *ServerTestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// submit posts a turn and waits for it to settle.
func (s *ServerTestSuite) submit(text string) pipeline.TurnReceipt {
	rec := s.do(http.MethodPost, "/turns", `{"text":"`+text+`"}`)
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	var receipt pipeline.TurnReceipt
	s.decode(rec, &receipt)
	s.orch.Wait()
	return receipt
}

func (s *ServerTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, rec.Code)

	var resp HealthResponse
	s.decode(rec, &resp)
	s.Equal("healthy", resp.Status)
	s.Equal("not configured", resp.Checks["mirror"].Message)
	s.Equal(s.orch.SessionID(), resp.SessionID)
}

func (s *ServerTestSuite) TestSubmitAndReadMessages() {
	receipt := s.submit("make a frog dancing")
	s.NotEmpty(receipt.TurnID)

	rec := s.do(http.MethodGet, "/messages", "")
	s.Equal(http.StatusOK, rec.Code)

	var resp MessagesResponse
	s.decode(rec, &resp)
	s.Require().Len(resp.Messages, 2)
	reply := resp.Messages[1]
	s.Equal(receipt.ReplyMessageID, reply.ID)
	s.Equal(ports.StageNone, reply.Stage)
	s.NotEmpty(reply.ArtifactRef)

	rec = s.do(http.MethodGet, "/history", "")
	s.JSONEq(`{"history":["make a frog dancing"]}`, rec.Body.String())
}

func (s *ServerTestSuite) TestSubmitRejectsBadInput() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/turns", `{"text":"   "}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/turns", `{"text":"`+strings.Repeat("a", 501)+`"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/turns", `{"text":`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/turns", `{"prompt":"x"}`).Code)
	s.Empty(s.orch.Messages())
}

func (s *ServerTestSuite) TestProfiles() {
	rec := s.do(http.MethodGet, "/profiles", "")
	var resp ProfilesResponse
	s.decode(rec, &resp)
	s.Equal("runway-gen4", resp.Current)
	s.Len(resp.Profiles, 4)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, "/profile", `{"profile":""}`).Code)

	rec = s.do(http.MethodPut, "/profile", `{"profile":"veo3"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"profile":"veo3"}`, rec.Body.String())
	s.Equal("veo3", s.orch.Profile())
}

func (s *ServerTestSuite) TestApplyEditStatusCodes() {
	receipt := s.submit("make a frog dancing")

	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/messages/nope/edits", `{"crop":"1:1"}`).Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/messages/"+receipt.UserMessageID+"/edits", `{"crop":"1:1"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/messages/"+receipt.ReplyMessageID+"/edits", `{"crop":"2:1"}`).Code)

	rec := s.do(http.MethodPost, "/messages/"+receipt.ReplyMessageID+"/edits", `{"trim":{"start":0,"end":2}}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var msg ports.Message
	s.decode(rec, &msg)
	s.Equal(2, msg.Artifact.DurationSeconds)
}

func (s *ServerTestSuite) TestArtifactsAndStats() {
	s.submit("make a frog dancing")
	s.submit("cyberpunk city at night")

	rec := s.do(http.MethodGet, "/artifacts?q=cyber", "")
	var found ArtifactsResponse
	s.decode(rec, &found)
	s.Equal(1, found.Total)
	s.Equal("cyberpunk city at night", found.Results[0].Title)

	rec = s.do(http.MethodGet, "/artifacts?q=whale", "")
	s.JSONEq(`{"query":"whale","results":[],"total":0}`, rec.Body.String())

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/artifacts?q="+strings.Repeat("x", 101), "").Code)

	rec = s.do(http.MethodGet, "/stats", "")
	var stats StatsResponse
	s.decode(rec, &stats)
	s.Equal(2, stats.Stages["generate"].Count)
	s.Equal(2, stats.Turns[ports.IntentGeneration])
	s.Equal(2, stats.Videos)
}

func (s *ServerTestSuite) TestResetSession() {
	s.submit("make a frog dancing")
	before := s.orch.SessionID()

	rec := s.do(http.MethodPost, "/session/reset", "")
	s.Equal(http.StatusOK, rec.Code)
	var resp map[string]string
	s.decode(rec, &resp)
	s.NotEqual(before, resp["sessionId"])

	s.JSONEq(`{"history":[]}`, s.do(http.MethodGet, "/history", "").Body.String())
}

func (s *ServerTestSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/health", "")
	rec := s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "studio_http_requests_total")
}

func TestEventsStream(t *testing.T) {
	classifier := intent.NewClassifier(intent.NewLexicon(config.DefaultGenerationVerbs, config.DefaultModificationVerbs))
	enhancer := enhance.NewService(enhance.Config{Resolution: "1920x1080"}, adapters.NoLatency{}, nil)
	orch := pipeline.NewOrchestrator(classifier, enhancer, generation.NewService(adapters.NoLatency{}), pipeline.DefaultPolicy())
	h := NewHandler(orch, nil, nil, zerolog.Nop(), 16)
	srv := httptest.NewServer(NewRouter(zerolog.Nop(), config.ServerConfig{}, h))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	// the preamble arrives once the subscription exists
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ": session "))

	_, err = orch.Submit(context.Background(), "make a frog dancing")
	require.NoError(t, err)

	var events []string
	for len(events) < 4 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}
	assert.Equal(t, []string{"appended", "appended", "updated", "updated"}, events)
}
