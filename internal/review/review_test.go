package review

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/services"
)

func sampleInput() CodeInput {
	return CodeInput{
		SubmissionID:    "001_smart_notes",
		Number:          1,
		ProjectName:     "Smart Notes",
		TeamName:        "Alpha",
		Description:     "Notes that summarize themselves.",
		SourceFiles:     "### main.py\nprint('hi')",
		LOC:             420,
		Commits:         12,
		PrimaryLanguage: "Python",
		Patterns:        []string{"anthropic_sdk", "tool_use"},
		Criteria: []Criterion{
			{Key: "ai_use", Weight: 0.5, Description: "AI depth"},
			{Key: "impact", Weight: 0.5, Description: "Who benefits"},
		},
	}
}

func TestAnthropicReviewParsesScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "claude-test" || req.MaxTokens != 1234 {
			t.Errorf("unexpected request model=%q max_tokens=%d", req.Model, req.MaxTokens)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Smart Notes") {
			t.Errorf("prompt missing project name")
		}
		text := "```json\n" + `{"review": "**What it does:** notes", "scores": {"ai_use": {"score": 14, "rationale": "deep"}, "Impact": "6/10", "bogus": 3}, "rationale": "solid"}` + "\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": text}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 900, "output_tokens": 120},
		})
	}))
	defer server.Close()

	reviewer, err := NewCodeReviewer(config.LLMConfig{
		Provider:  config.ProviderAnthropic,
		APIKey:    "secret",
		BaseURL:   server.URL + "/v1/messages",
		Model:     "claude-test",
		MaxTokens: 1234,
	})
	if err != nil {
		t.Fatalf("NewCodeReviewer: %v", err)
	}
	result, err := reviewer.Review(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if result.Provider != config.ProviderAnthropic || result.Model != "claude-test" {
		t.Fatalf("unexpected provider/model %q/%q", result.Provider, result.Model)
	}
	if got := result.Scores["ai_use"]; got.Score != 10 || got.Rationale != "deep" {
		t.Fatalf("ai_use = %+v, want clamped 10 with rationale", got)
	}
	if got := result.Scores["impact"].Score; got != 6 {
		t.Fatalf("impact = %v, want 6", got)
	}
	if _, ok := result.Scores["bogus"]; ok {
		t.Fatal("scores for unknown criteria must be dropped")
	}
	if result.InputTokens != 900 || result.OutputTokens != 120 {
		t.Fatalf("unexpected usage %d/%d", result.InputTokens, result.OutputTokens)
	}
	if !strings.HasPrefix(result.Review, "**What it does:**") {
		t.Fatalf("unexpected review %q", result.Review)
	}
}

func TestOpenRouterReviewUsesChatCompletions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer router-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != openRouterTitle {
			t.Errorf("X-Title = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{
				"content": `{"review": "fine", "scores": {"ai_use": 3, "impact": 0}}`,
			}}},
		})
	}))
	defer server.Close()

	reviewer, err := NewCodeReviewer(config.LLMConfig{
		Provider: config.ProviderOpenRouter,
		APIKey:   "router-key",
		BaseURL:  server.URL,
		Model:    "anthropic/claude",
	})
	if err != nil {
		t.Fatalf("NewCodeReviewer: %v", err)
	}
	result, err := reviewer.Review(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if result.Scores["ai_use"].Score != 3 || result.Scores["impact"].Score != 1 {
		t.Fatalf("unexpected scores %+v", result.Scores)
	}
}

func TestReviewClassifiesProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "auth", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, want: services.ErrAuth},
		{name: "rate limit", status: http.StatusTooManyRequests, body: `{}`, want: services.ErrRateLimit},
		{name: "overloaded", status: 529, body: `{}`, want: services.ErrRateLimit},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`, want: services.ErrInvalidResponse},
		{name: "garbage", status: http.StatusOK, body: `{"content":[{"type":"text","text":"no json here"}]}`, want: services.ErrInvalidResponse},
		{name: "empty", status: http.StatusOK, body: `{"content":[]}`, want: services.ErrInvalidResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()
			reviewer, err := NewCodeReviewer(config.LLMConfig{Provider: config.ProviderAnthropic, APIKey: "k", BaseURL: server.URL, Model: "m"})
			if err != nil {
				t.Fatalf("NewCodeReviewer: %v", err)
			}
			_, err = reviewer.Review(context.Background(), sampleInput())
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func writeVideo(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.mp4")
	if err := os.WriteFile(path, []byte(strings.Repeat("v", size)), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

const videoReply = `{"transcript_summary": "They show the app.", "demo_classification": "Polished", "is_related_to_project": false, "review": "Clear.", "scores": {"demo": 8}}`

func geminiReply(w http.ResponseWriter, text string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"parts": []any{map[string]string{"text": text}}},
			"finishReason": "STOP",
		}},
	})
}

func TestGeminiVideoInline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "gkey" {
			t.Errorf("x-goog-api-key = %q", got)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 || req.Contents[0].Parts[0].InlineData == nil {
			t.Errorf("expected inline video part")
		}
		geminiReply(w, videoReply)
	}))
	defer server.Close()

	reviewer, err := NewVideoReviewer(config.LLMConfig{Provider: config.ProviderGemini, APIKey: "gkey", BaseURL: server.URL, Model: "gemini-test"})
	if err != nil {
		t.Fatalf("NewVideoReviewer: %v", err)
	}
	result, err := reviewer.Review(context.Background(), VideoInput{ProjectName: "Smart Notes", VideoPath: writeVideo(t, 64)})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if result.DemoClassification != DemoPolished {
		t.Fatalf("classification = %q", result.DemoClassification)
	}
	if result.RelatedToProject {
		t.Fatal("expected unrelated video")
	}
	if result.Scores["demo"].Score != 8 {
		t.Fatalf("demo score = %v", result.Scores["demo"].Score)
	}
}

func TestGeminiVideoUploadsLargeFiles(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    []string
		polls    int
		uploaded int64
	)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.URL.Path == "/upload/v1beta/files":
			if r.Header.Get("X-Goog-Upload-Command") != "start" {
				t.Errorf("expected start command")
			}
			w.Header().Set("X-Goog-Upload-URL", server.URL+"/upload-session")
		case r.URL.Path == "/upload-session":
			n, _ := io.Copy(io.Discard, r.Body)
			mu.Lock()
			uploaded = n
			mu.Unlock()
			_, _ = io.WriteString(w, `{"file": {"name": "files/abc", "uri": "https://files.example/abc", "state": "PROCESSING"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1beta/files/abc":
			mu.Lock()
			polls++
			state := fileStateProcessing
			if polls >= 2 {
				state = fileStateActive
			}
			mu.Unlock()
			_, _ = io.WriteString(w, `{"name": "files/abc", "uri": "https://files.example/abc", "state": "`+state+`"}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/v1beta/files/abc":
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			var req geminiRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			part := req.Contents[0].Parts[0]
			if part.FileData == nil || part.FileData.FileURI != "https://files.example/abc" {
				t.Errorf("expected file_data part, got %+v", part)
			}
			geminiReply(w, videoReply)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reviewer, err := NewVideoReviewer(
		config.LLMConfig{Provider: config.ProviderGemini, APIKey: "gkey", BaseURL: server.URL, Model: "gemini-test"},
		WithInlineLimit(16),
		WithPolling(time.Millisecond, 10),
	)
	if err != nil {
		t.Fatalf("NewVideoReviewer: %v", err)
	}
	if _, err := reviewer.Review(context.Background(), VideoInput{VideoPath: writeVideo(t, 100)}); err != nil {
		t.Fatalf("Review: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if uploaded != 100 {
		t.Fatalf("uploaded %d bytes, want 100", uploaded)
	}
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
	if last := calls[len(calls)-1]; last != "DELETE /v1beta/files/abc" {
		t.Fatalf("expected uploaded file to be deleted last, calls=%v", calls)
	}
}

func TestGeminiVideoFailedProcessing(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload/v1beta/files":
			w.Header().Set("X-Goog-Upload-URL", server.URL+"/upload-session")
		case "/upload-session":
			_, _ = io.WriteString(w, `{"file": {"name": "files/bad", "state": "FAILED"}}`)
		}
	}))
	defer server.Close()

	reviewer, err := NewVideoReviewer(
		config.LLMConfig{Provider: config.ProviderGemini, APIKey: "gkey", BaseURL: server.URL, Model: "m"},
		WithInlineLimit(1),
	)
	if err != nil {
		t.Fatalf("NewVideoReviewer: %v", err)
	}
	_, err = reviewer.Review(context.Background(), VideoInput{VideoPath: writeVideo(t, 10)})
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestNewReviewersRequireCredentials(t *testing.T) {
	_, err := NewCodeReviewer(config.LLMConfig{Provider: config.ProviderAnthropic})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing key error = %v", err)
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("error should name the env var: %v", err)
	}
	if _, err := NewCodeReviewer(config.LLMConfig{Provider: "mystery", APIKey: "k"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("unknown provider error = %v", err)
	}
	if _, err := NewVideoReviewer(config.LLMConfig{Provider: config.ProviderAnthropic, APIKey: "k"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("anthropic video error = %v", err)
	}

	reviewer, err := NewVideoReviewer(config.LLMConfig{Provider: config.ProviderNone})
	if err != nil {
		t.Fatalf("none reviewer: %v", err)
	}
	result, err := reviewer.Review(context.Background(), VideoInput{})
	if err != nil || !result.Skipped {
		t.Fatalf("disabled reviewer result=%+v err=%v", result, err)
	}
}

func TestParseDemoClassification(t *testing.T) {
	tests := map[string]DemoClassification{
		"polished":      DemoPolished,
		" Slides Only ": DemoSlidesOnly,
		"BASIC_WORKING": DemoBasicWorking,
		"amazing":       DemoUnknown,
		"":              DemoUnknown,
	}
	for input, want := range tests {
		if got := ParseDemoClassification(input); got != want {
			t.Errorf("ParseDemoClassification(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildCodeReviewPrompt(t *testing.T) {
	prompt := BuildCodeReviewPrompt(sampleInput())
	for _, want := range []string{
		"**Ai Use (50%):** AI depth",
		`"ai_use": {"score": N`,
		"anthropic_sdk, tool_use",
		"(no transcript available)",
		"Team #1",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "%!") {
		t.Fatalf("prompt has formatting errors:\n%s", prompt)
	}
}
