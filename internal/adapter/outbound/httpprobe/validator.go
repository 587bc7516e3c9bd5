// Package httpprobe checks whether media URLs resolve.
package httpprobe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// Config contains validator configuration.
type Config struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// StrictContentType rejects responses whose content type does not match
	// the media type. Responses without a content type are always accepted.
	StrictContentType bool `mapstructure:"strict_content_type"`
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:  10 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}

// Validator probes URLs with HEAD and falls back to a one-byte ranged GET
// for servers that refuse HEAD. Positive results are cached.
type Validator struct {
	client *resty.Client
	cache  *cache.Cache
	config Config
	logger *zap.Logger
}

// NewValidator creates a new URL validator.
func NewValidator(hc *http.Client, cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if hc == nil {
		hc = http.DefaultClient
	}

	client := resty.NewWithClient(hc)
	client.SetTimeout(cfg.Timeout)

	return &Validator{
		client: client,
		cache:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		config: cfg,
		logger: logger.Named("url-validator"),
	}
}

// Validate reports whether url answers with a usable media response.
func (v *Validator) Validate(ctx context.Context, url string, mediaType media.MediaType) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	if _, ok := v.cache.Get(url); ok {
		return true
	}

	resp, err := v.client.R().SetContext(ctx).Head(url)
	if err == nil && (resp.StatusCode() == http.StatusMethodNotAllowed || resp.StatusCode() == http.StatusForbidden) {
		resp, err = v.client.R().
			SetContext(ctx).
			SetHeader("Range", "bytes=0-0").
			SetDoNotParseResponse(true).
			Get(url)
		if err == nil && resp.RawResponse != nil {
			resp.RawResponse.Body.Close()
		}
	}
	if err != nil {
		v.logger.Debug("probe failed", zap.String("url", url), zap.Error(err))
		return false
	}

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		v.logger.Debug("probe rejected", zap.String("url", url), zap.Int("status", code))
		return false
	}
	if !v.contentTypeMatches(resp.Header().Get("Content-Type"), mediaType) {
		v.logger.Debug("probe content type mismatch",
			zap.String("url", url),
			zap.String("content_type", resp.Header().Get("Content-Type")))
		return false
	}

	v.cache.SetDefault(url, struct{}{})
	return true
}

func (v *Validator) contentTypeMatches(contentType string, mediaType media.MediaType) bool {
	if !v.config.StrictContentType || contentType == "" || !mediaType.IsValid() {
		return true
	}
	contentType = strings.ToLower(contentType)
	if strings.HasPrefix(contentType, "application/octet-stream") {
		return true
	}
	return strings.HasPrefix(contentType, mediaType.String()+"/")
}

var _ outbound.MediaURLValidatorPort = (*Validator)(nil)
