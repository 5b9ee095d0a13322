package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"

	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/observability/metrics"
)

func TestRedact(t *testing.T) {
	id := uuid.MustParse("3f2b8a9e-1c4d-4e5f-9a6b-7c8d9e0f1a2b")
	in := "Jane Doe (jane.doe@example.com, id " + id.String() + ") called 555-123-4567 " +
		"about MRN 12AB34, cc: ops@clinic.org. jane doe says hi."

	got := Redact(in, Identifiers{FullName: "Jane Doe", Email: "jane.doe@example.com", PatientID: id.String()})

	for _, leaked := range []string{"Jane", "jane", "example.com", id.String(), "555-123-4567", "12AB34", "ops@clinic.org"} {
		if strings.Contains(got, leaked) {
			t.Errorf("redacted output still contains %q: %s", leaked, got)
		}
	}
	for _, marker := range []string{redactedName, redactedEmail, redactedID, redacted} {
		if !strings.Contains(got, marker) {
			t.Errorf("missing %s in %s", marker, got)
		}
	}
}

func TestRedactLeavesPlainTextAlone(t *testing.T) {
	in := "  Headache for 3 days, worse in the morning.  "
	if got := Redact(in, Identifiers{}); got != strings.TrimSpace(in) {
		t.Fatalf("got %q", got)
	}
}

func TestParseIntent(t *testing.T) {
	for _, v := range []string{"prescription", "previsit", "next_steps", " NEXT_STEPS "} {
		if _, err := ParseIntent(v); err != nil {
			t.Errorf("ParseIntent(%q): %v", v, err)
		}
	}
	if _, err := ParseIntent("diagnose"); !errors.Is(err, ErrInvalidIntent) {
		t.Errorf("err = %v", err)
	}
}

type stubGenerator struct {
	text   string
	err    error
	prompt string
	calls  int
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.text, s.err
}

var caller = auth.Principal{
	UserID:   uuid.MustParse("11111111-2222-4333-8444-555555555555"),
	Email:    "sam@example.com",
	FullName: "Sam Patient",
	Role:     auth.RolePatient,
}

func TestSummarizeUsesModel(t *testing.T) {
	gen := &stubGenerator{text: "Take with food."}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(gen, m, nil)

	out, err := svc.Summarize(context.Background(), caller, Request{Intent: "prescription", Context: "Sam Patient takes metformin"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Source != SourceModel || out.Summary != "Take with food." {
		t.Fatalf("got %+v", out)
	}
	if strings.Contains(gen.prompt, "Sam Patient") {
		t.Error("prompt sent to the model contains the caller's name")
	}
	if !strings.Contains(gen.prompt, "Patient Context (sanitized for privacy):") {
		t.Error("prompt missing context header")
	}
	if v := testutil.ToFloat64(m.AssistantRequests.WithLabelValues(SourceModel)); v != 1 {
		t.Errorf("model counter = %v", v)
	}
}

func TestSummarizeFallback(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
	}{
		{"unconfigured", nil},
		{"model error", &stubGenerator{err: errors.New("quota exceeded")}},
		{"empty completion", &stubGenerator{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.gen, nil, nil)
			out, err := svc.Summarize(context.Background(), caller, Request{Intent: "previsit", Context: "Fever since Monday. Email sam@example.com"})
			if err != nil {
				t.Fatal(err)
			}
			if out.Source != SourceFallback {
				t.Fatalf("source = %s", out.Source)
			}
			want := "Symptom snapshot for your upcoming visit\n\nFever since Monday. Email [REDACTED EMAIL]\n\n" + closingNote
			if out.Summary != want {
				t.Fatalf("summary = %q\nwant %q", out.Summary, want)
			}
		})
	}
}

func TestSummarizeRejections(t *testing.T) {
	svc := NewService(nil, nil, nil)

	if _, err := svc.Summarize(context.Background(), auth.Principal{}, Request{Intent: "previsit", Context: "x"}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous: err = %v", err)
	}
	if _, err := svc.Summarize(context.Background(), caller, Request{Intent: "other", Context: "x"}); !errors.Is(err, ErrInvalidIntent) {
		t.Errorf("intent: err = %v", err)
	}
	if _, err := svc.Summarize(context.Background(), caller, Request{Intent: "previsit", Context: "  "}); !errors.Is(err, ErrEmptyContext) {
		t.Errorf("context: err = %v", err)
	}
}

func TestGeminiClient(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Drink water. "},{"text":"Rest."}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{Endpoint: srv.URL + "/", Model: "gemini-test", APIKey: "k-123"})
	text, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Drink water. Rest." {
		t.Errorf("text = %q", text)
	}
	if gotKey != "k-123" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestGeminiClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "empty") {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
			return
		}
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "m"}).Generate(context.Background(), "p"); err == nil {
		t.Error("expected error on 429")
	}
	if _, err := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "empty"}).Generate(context.Background(), "p"); !errors.Is(err, errEmptyCompletion) {
		t.Errorf("empty: err = %v", err)
	}
}

type countingGenerator struct {
	calls atomic.Int32
}

func (c *countingGenerator) Generate(context.Context, string) (string, error) {
	c.calls.Add(1)
	return "", errors.New("upstream down")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &countingGenerator{}
	gen := NewBreakerGenerator(inner, BreakerConfig{FailureThreshold: 2}, nil)

	for i := 0; i < 2; i++ {
		if _, err := gen.Generate(context.Background(), "p"); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := gen.Generate(context.Background(), "p")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open state", err)
	}
	if n := inner.calls.Load(); n != 2 {
		t.Fatalf("inner called %d times, want 2", n)
	}

	// the service still answers while the breaker is open
	out, err := NewService(gen, nil, nil).Summarize(context.Background(), caller, Request{Intent: "next_steps", Context: "Follow up in 2 weeks"})
	if err != nil || out.Source != SourceFallback {
		t.Fatalf("got %+v, %v", out, err)
	}
}
