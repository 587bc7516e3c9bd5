// Package recovery reconstructs media URLs for tasks whose provider status
// endpoint stopped answering usefully.
package recovery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
	"github.com/uniedit/mediagen/internal/utils/metrics"
)

// Result is the outcome of one recovery attempt. Err is ErrRecoveryExhausted
// when no candidate validated.
type Result struct {
	Success bool
	URL     string
	Tried   []string
	Err     error
}

// Strategy probes candidate URLs in priority order.
// It never writes to the task store; callers register a found URL.
type Strategy struct {
	validator outbound.MediaURLValidatorPort
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu         sync.RWMutex
	candidates []Candidate
}

// NewStrategy creates a recovery strategy.
func NewStrategy(
	validator outbound.MediaURLValidatorPort,
	templates []TemplateCandidate,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Strategy{
		validator: validator,
		metrics:   m,
		logger:    logger.Named("recovery"),
	}
	s.SetTemplates(templates)
	return s
}

// SetTemplates replaces the template list, keeping the given order.
func (s *Strategy) SetTemplates(templates []TemplateCandidate) {
	candidates := make([]Candidate, 0, len(templates))
	for _, t := range templates {
		candidates = append(candidates, t)
	}

	s.mu.Lock()
	s.candidates = candidates
	s.mu.Unlock()

	s.logger.Info("recovery templates loaded", zap.Int("count", len(candidates)))
}

// Candidates returns a snapshot of the configured candidates.
func (s *Strategy) Candidates() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// RecoverByTaskID tries every applicable template for the task and returns the
// first URL that validates.
func (s *Strategy) RecoverByTaskID(ctx context.Context, taskID string, mediaType media.MediaType) Result {
	res := s.probe(ctx, s.Candidates(), taskID, mediaType)
	s.metrics.RecordRecovery("task_id", res.Success)
	if !res.Success {
		s.logger.Debug("recovery exhausted",
			zap.String("task_id", taskID),
			zap.Int("tried", len(res.Tried)))
	}
	return res
}

// RecoverByURL validates a user-supplied URL.
func (s *Strategy) RecoverByURL(ctx context.Context, url string, mediaType media.MediaType) Result {
	res := s.probe(ctx, []Candidate{DirectURLCandidate{URL: url}}, "", mediaType)
	s.metrics.RecordRecovery("url", res.Success)
	return res
}

func (s *Strategy) probe(ctx context.Context, candidates []Candidate, taskID string, mediaType media.MediaType) Result {
	var res Result
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		url, ok := c.Resolve(taskID, mediaType)
		if !ok {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		res.Tried = append(res.Tried, url)

		valid := s.validator.Validate(ctx, url, mediaType)
		s.metrics.RecordProbe(c.Label(), valid)
		if valid {
			s.logger.Info("media url recovered",
				zap.String("task_id", taskID),
				zap.String("candidate", c.Label()),
				zap.String("url", url))
			res.Success = true
			res.URL = url
			return res
		}
	}

	res.Err = media.ErrRecoveryExhausted
	return res
}
