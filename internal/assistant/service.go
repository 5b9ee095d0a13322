// Package assistant produces the quick-action summaries shown on the
// dashboard. Context is always redacted before it leaves the process, and a
// local summary is returned when the model cannot answer.
package assistant

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/observability/metrics"
)

const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

var (
	ErrUnauthenticated = errors.New("sign in to use AI assistance")
	ErrInvalidIntent   = errors.New("unknown quick action")
	ErrEmptyContext    = errors.New("context is required")
)

type Request struct {
	Intent  string
	Context string
}

type Summary struct {
	Intent           Intent `json:"intent"`
	Summary          string `json:"summary"`
	SanitizedContext string `json:"sanitized_context"`
	Source           string `json:"source"`
}

type Service struct {
	gen     Generator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService accepts a nil generator; every request then gets the fallback.
func NewService(gen Generator, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, metrics: m, logger: logger}
}

func (s *Service) Summarize(ctx context.Context, actor auth.Principal, req Request) (*Summary, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	intent, err := ParseIntent(req.Intent)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Context) == "" {
		return nil, ErrEmptyContext
	}

	sanitized := Redact(req.Context, Identifiers{
		FullName:  actor.FullName,
		Email:     actor.Email,
		PatientID: actor.UserID.String(),
	})

	out := &Summary{
		Intent:           intent,
		Summary:          FallbackSummary(intent, sanitized),
		SanitizedContext: sanitized,
		Source:           SourceFallback,
	}

	if s.gen != nil {
		text, err := s.gen.Generate(ctx, BuildPrompt(intent, sanitized))
		if err != nil {
			s.logger.Warn("assistant model failed, using fallback",
				zap.String("intent", string(intent)),
				zap.Error(err),
			)
		} else if text != "" {
			out.Summary = text
			out.Source = SourceModel
		}
	}

	s.metrics.ObserveAssistant(out.Source)
	return out, nil
}
