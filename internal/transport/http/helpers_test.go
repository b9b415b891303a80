package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
	"medy-coop-service/internal/infra/memory"
	"medy-coop-service/internal/realtime"
)

type testStack struct {
	server    *httptest.Server
	hub       *realtime.Hub
	questions map[string]domain.Question
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	log := zerolog.Nop()
	questions := make([]domain.Question, 0, 20)
	byID := make(map[string]domain.Question)
	for i := 0; i < 20; i++ {
		q := domain.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Prompt:        fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: []int{i % 4},
			Speciality:    "medecine",
		}
		questions = append(questions, q)
		byID[q.ID] = q
	}

	dir := memory.NewDirectory()
	dir.AddFriendship("u1", "u2")
	dir.AddFriendship("u1", "u3")

	hub := realtime.NewHub(log, realtime.Options{Retries: 1, RetryBase: time.Millisecond})
	service := app.NewCoopService(app.Dependencies{
		Sessions:  memory.NewSessionStore(),
		Questions: memory.NewSampleCache(memory.NewQuestionBank(questions), time.Minute),
		Answers:   memory.NewAnswerLog(),
		Friends:   dir,
		Users:     dir,
		Events:    hub,
		Notifier:  memory.NewInbox(),
		Logger:    log,
	})

	mux := http.NewServeMux()
	NewSessionHandler(service, log).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service, hub, log, WSOptions{Heartbeat: time.Second}).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testStack{server: server, hub: hub, questions: byID}
}

type apiResponse struct {
	status int
	Data   json.RawMessage `json:"data"`
	Error  *errorBody      `json:"error"`
}

func (s *testStack) do(t *testing.T, method, path, userID string, body any) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	out.status = resp.StatusCode
	return out
}

func decodeView(t *testing.T, raw json.RawMessage) domain.SessionView {
	t.Helper()
	var view domain.SessionView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

// readySession creates a session between u1 and u2 with five questions and both players ready.
func (s *testStack) readySession(t *testing.T) string {
	t.Helper()
	created := s.do(t, http.MethodPost, "/coop/sessions", "u1", map[string]any{"friendId": "u2"})
	if created.status != http.StatusCreated {
		t.Fatalf("create: status %d, error %+v", created.status, created.Error)
	}
	id := decodeView(t, created.Data).ID

	filters := s.do(t, http.MethodPatch, "/coop/sessions/"+id+"/filters", "u1", map[string]any{
		"count": 5, "level": "facile", "correctionMode": "standard", "speciality": " Medecine ",
	})
	if filters.status != http.StatusOK {
		t.Fatalf("filters: status %d, error %+v", filters.status, filters.Error)
	}
	for _, u := range []string{"u1", "u2"} {
		resp := s.do(t, http.MethodPatch, "/coop/sessions/"+id+"/ready", u, map[string]any{"ready": true})
		if resp.status != http.StatusOK {
			t.Fatalf("ready %s: status %d, error %+v", u, resp.status, resp.Error)
		}
	}
	return id
}
