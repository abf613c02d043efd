package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/adapter"
	"baking-ai-assistant/internal/domain/prompt"
	"baking-ai-assistant/internal/infra/memory"
	"baking-ai-assistant/internal/usecase"
)

type scriptedAI struct {
	replies []string
	err     error
	calls   int
}

func (a *scriptedAI) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (a *scriptedAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}
func (a *scriptedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (a *scriptedAI) Chat(ctx context.Context, model, systemPrompt string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	reply := a.replies[a.calls%len(a.replies)]
	a.calls++
	return reply, nil
}

func newTestServer(t *testing.T, ai adapter.AIServiceAdapter) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	repo := memory.NewSessionRepo()
	locks := usecase.NewKeyedLock()
	builder := prompt.NewBuilder(prompt.DefaultHistoryWindow)
	chat := usecase.NewChatUseCase(repo, ai, builder, locks, nil, "test-model", adapter.ChatOptions{MaxTokens: 2048, Temperature: 0.7}, &logger)
	sessions := usecase.NewSessionUseCase(repo, locks, &logger)
	srv := NewServer(chat, sessions, &logger, 0)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, key, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("X-Session-Key", key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, payload
}

func TestFullRecipeConversation(t *testing.T) {
	recipeReply := "Here's a great sourdough!\n%%%RECIPE_JSON%%%\n" +
		`{"title":"Sourdough Loaf","servings":"1 loaf","ingredients":["flour","water","salt","starter"],"steps":["Mix","Bulk ferment","Shape","Bake"]}` +
		"\n%%%END_RECIPE%%%\nLet me know when you want to start baking."
	stepReply := "Great, mix your flour and water first.\n%%%STEP_UPDATE%%%\n" +
		`{"currentStep":0,"totalSteps":4}` + "\n%%%END_STEP%%%"
	ai := &scriptedAI{replies: []string{recipeReply, stepReply}}
	ts := newTestServer(t, ai)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/chat", "alice", `{"message":"sourdough recipe please"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	var reply string
	if err := json.Unmarshal(body["reply"], &reply); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if strings.Contains(reply, "%%%") {
		t.Fatalf("markers leaked into reply: %q", reply)
	}
	if !strings.Contains(reply, "sourdough") && !strings.Contains(reply, "Sourdough") {
		t.Fatalf("prose lost: %q", reply)
	}
	var recipe model.Recipe
	if err := json.Unmarshal(body["recipe"], &recipe); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	if recipe.Title != "Sourdough Loaf" || len(recipe.Steps) != 4 {
		t.Fatalf("recipe = %+v", recipe)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/chat", "alice", `{"message":"let's start"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second chat status = %d", resp.StatusCode)
	}
	var stepIdx int
	if err := json.Unmarshal(body["currentStepIndex"], &stepIdx); err != nil {
		t.Fatalf("currentStepIndex: %v", err)
	}
	if stepIdx != 0 {
		t.Fatalf("currentStepIndex = %d, want 0", stepIdx)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/session", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d", resp.StatusCode)
	}
	var turns []model.Turn
	if err := json.Unmarshal(body["conversationHistory"], &turns); err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("history length = %d, want 4", len(turns))
	}
	// Raw markers stay in the stored assistant turn.
	if !strings.Contains(turns[1].Content, "%%%RECIPE_JSON%%%") {
		t.Fatalf("assistant turn lost raw markers: %q", turns[1].Content)
	}
}

func TestResetKeepsPreferences(t *testing.T) {
	ai := &scriptedAI{replies: []string{"hi there"}}
	ts := newTestServer(t, ai)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/preferences", "bob", `{"dietaryRestrictions":["gluten-free"],"skillLevel":"advanced"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preferences status = %d", resp.StatusCode)
	}
	var prefs model.Preferences
	if err := json.Unmarshal(body["preferences"], &prefs); err != nil {
		t.Fatalf("preferences: %v", err)
	}
	if prefs.SkillLevel != "advanced" || len(prefs.DietaryRestrictions) != 1 {
		t.Fatalf("prefs = %+v", prefs)
	}

	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/chat", "bob", `{"message":"hello"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/reset", "bob", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/session", "bob", "")
	var turns []model.Turn
	if err := json.Unmarshal(body["conversationHistory"], &turns); err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("history survived reset: %d turns", len(turns))
	}
	if err := json.Unmarshal(body["preferences"], &prefs); err != nil {
		t.Fatalf("preferences: %v", err)
	}
	if prefs.SkillLevel != "advanced" {
		t.Fatalf("preferences lost on reset: %+v", prefs)
	}
}

func TestMissingSessionKeyRejected(t *testing.T) {
	ts := newTestServer(t, &scriptedAI{replies: []string{"x"}})

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/session", ""},
		{http.MethodPost, "/chat", `{"message":"hi"}`},
		{http.MethodPost, "/preferences", `{}`},
		{http.MethodPost, "/reset", ""},
	} {
		resp, body := doJSON(t, tc.method, ts.URL+tc.path, "", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s %s status = %d, want 400", tc.method, tc.path, resp.StatusCode)
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("%s %s missing error field", tc.method, tc.path)
		}
	}
}

func TestSessionKeyFromQueryAndCookie(t *testing.T) {
	ts := newTestServer(t, &scriptedAI{replies: []string{"x"}})

	resp, err := http.Get(ts.URL + "/session?session=carol")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query key status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/session", nil)
	req.AddCookie(&http.Cookie{Name: "session_key", Value: "carol"})
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cookie key status = %d", resp.StatusCode)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	ts := newTestServer(t, &scriptedAI{replies: []string{"x"}})
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/chat", "dave", `{"message":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpstreamFailureMapsToBadGateway(t *testing.T) {
	ts := newTestServer(t, &scriptedAI{err: errors.New("provider down")})
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/chat", "erin", `{"message":"hello"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var msg string
	if err := json.Unmarshal(body["error"], &msg); err != nil || msg == "" {
		t.Fatalf("error body = %v", body)
	}
}

// failingRepo errors on every operation.
type failingRepo struct{}

func (failingRepo) Load(ctx context.Context, key string) (*model.Session, error) {
	return nil, errors.New("store offline")
}
func (failingRepo) SaveTurn(ctx context.Context, s *model.Session, u, a model.Turn) error {
	return errors.New("store offline")
}
func (failingRepo) SavePreferences(ctx context.Context, key string, p model.Preferences) error {
	return errors.New("store offline")
}
func (failingRepo) Reset(ctx context.Context, key string) error { return errors.New("store offline") }
func (failingRepo) CountSessions(ctx context.Context) (int, error) {
	return 0, errors.New("store offline")
}
func (failingRepo) CountTurns(ctx context.Context) (int64, error) {
	return 0, errors.New("store offline")
}

func TestPersistenceFailureReturns500WithDetails(t *testing.T) {
	logger := zerolog.Nop()
	locks := usecase.NewKeyedLock()
	sessions := usecase.NewSessionUseCase(failingRepo{}, locks, &logger)
	srv := NewServer(nil, sessions, &logger, 0)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/session", "frank", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var msg, details string
	if err := json.Unmarshal(body["error"], &msg); err != nil || msg != "internal error" {
		t.Fatalf("error = %q (%v)", msg, err)
	}
	if err := json.Unmarshal(body["details"], &details); err != nil || details == "" {
		t.Fatalf("details = %q (%v)", details, err)
	}
}

func TestUnknownRouteIs404JSON(t *testing.T) {
	ts := newTestServer(t, &scriptedAI{replies: []string{"x"}})
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/nope", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("missing error field: %v", body)
	}
}
