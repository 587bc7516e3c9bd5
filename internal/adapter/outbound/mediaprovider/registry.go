package mediaprovider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
	"github.com/uniedit/mediagen/internal/utils/metrics"
)

// BreakerConfig configures the per-vendor circuit breakers.
type BreakerConfig struct {
	FailureThreshold    uint32        `mapstructure:"failure_threshold"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Interval            time.Duration `mapstructure:"interval"`
	MaxHalfOpenRequests uint32        `mapstructure:"max_half_open_requests"`
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		Timeout:             60 * time.Second,
		Interval:            0,
		MaxHalfOpenRequests: 1,
	}
}

// Registry routes generation calls to the vendor serving a model. Calls pass
// through a circuit breaker per vendor; auth errors and submission rejections
// are not counted as vendor failures.
type Registry struct {
	mu       sync.RWMutex
	vendors  []outbound.MediaVendorPort
	breakers map[string]*gobreaker.CircuitBreaker[any]

	config  BreakerConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRegistry creates a new vendor registry.
func NewRegistry(cfg BreakerConfig, m *metrics.Metrics, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 1
	}
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   cfg,
		metrics:  m,
		logger:   logger.Named("vendors"),
	}
}

// Register registers a vendor. Earlier registrations win when two vendors
// serve the same model.
func (r *Registry) Register(vendor outbound.MediaVendorPort) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := vendor.Name()
	r.vendors = append(r.vendors, vendor)
	r.breakers[name] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: r.config.MaxHalfOpenRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				media.IsSubmissionError(err) ||
				media.IsAuthError(err) ||
				errors.Is(err, media.ErrPollUnsupported)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("vendor breaker state changed",
				zap.String("vendor", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			r.metrics.SetBreakerState(name, int(to))
		},
	})
	r.logger.Debug("registered vendor", zap.String("vendor", name))
}

// Knows reports whether some vendor serves model for mediaType.
func (r *Registry) Knows(mediaType media.MediaType, model string) bool {
	_, _, err := r.route(mediaType, model)
	return err == nil
}

// Submit starts a generation on the vendor serving req.Model.
func (r *Registry) Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error) {
	vendor, cb, err := r.route(req.MediaType, req.Model)
	if err != nil {
		return nil, err
	}
	out, err := cb.Execute(func() (any, error) {
		return vendor.Submit(ctx, req)
	})
	if err != nil {
		if isBreakerError(err) {
			return nil, &media.SubmissionError{Provider: vendor.Name(), Reason: "provider temporarily unavailable", Err: err}
		}
		return nil, err
	}
	return out.(*media.Submission), nil
}

// Poll returns the current provider state of taskID.
func (r *Registry) Poll(ctx context.Context, mediaType media.MediaType, model, taskID string) (*media.PollResult, error) {
	vendor, cb, err := r.route(mediaType, model)
	if err != nil {
		return nil, err
	}
	out, err := cb.Execute(func() (any, error) {
		return vendor.Poll(ctx, taskID)
	})
	if err != nil {
		if isBreakerError(err) {
			return nil, &media.TransportError{Provider: vendor.Name(), Op: "poll", Err: err}
		}
		return nil, err
	}
	return out.(*media.PollResult), nil
}

// Cancel asks the provider to stop taskID.
func (r *Registry) Cancel(ctx context.Context, mediaType media.MediaType, model, taskID string) (bool, error) {
	vendor, cb, err := r.route(mediaType, model)
	if err != nil {
		return false, err
	}
	out, err := cb.Execute(func() (any, error) {
		return vendor.Cancel(ctx, taskID)
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// Status returns the breaker state of every vendor, sorted by name.
func (r *Registry) Status() []outbound.VendorStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]outbound.VendorStatus, 0, len(r.vendors))
	for _, v := range r.vendors {
		out = append(out, outbound.VendorStatus{Name: v.Name(), Breaker: r.breakers[v.Name()].State().String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) route(mediaType media.MediaType, model string) (outbound.MediaVendorPort, *gobreaker.CircuitBreaker[any], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.vendors {
		if v.Supports(mediaType, model) {
			return v, r.breakers[v.Name()], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s/%s", media.ErrUnknownModel, mediaType, model)
}

func isBreakerError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Compile-time interface check
var _ outbound.MediaGatewayPort = (*Registry)(nil)
