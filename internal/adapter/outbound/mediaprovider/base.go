package mediaprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// VendorConfig configures one vendor adapter.
type VendorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// Models lists served model ids per media type, e.g. {"video": ["ray-2"]}.
	Models map[string][]string `mapstructure:"models"`
	// VoiceID is the default voice of text-to-speech vendors.
	VoiceID string `mapstructure:"voice_id"`
}

// Enabled reports whether the vendor has credentials.
func (c VendorConfig) Enabled() bool {
	return c.APIKey != ""
}

// catalog answers Supports for a VendorConfig.
type catalog map[media.MediaType]map[string]struct{}

func newCatalog(models map[string][]string, defaults map[media.MediaType][]string) catalog {
	c := make(catalog)
	add := func(mt media.MediaType, ids []string) {
		if c[mt] == nil {
			c[mt] = make(map[string]struct{})
		}
		for _, id := range ids {
			c[mt][strings.ToLower(id)] = struct{}{}
		}
	}
	if len(models) == 0 {
		for mt, ids := range defaults {
			add(mt, ids)
		}
		return c
	}
	for mt, ids := range models {
		add(media.MediaType(strings.ToLower(mt)), ids)
	}
	return c
}

func (c catalog) supports(mediaType media.MediaType, model string) bool {
	_, ok := c[mediaType][strings.ToLower(model)]
	return ok
}

func newRestClient(hc *http.Client, baseURL string) *resty.Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	c := resty.NewWithClient(hc)
	c.SetBaseURL(strings.TrimRight(baseURL, "/"))
	c.SetHeader("Accept", "application/json")
	return c
}

// submitFailure classifies a failed submit call. Every failure at submit time
// is a SubmissionError; it is never retried.
func submitFailure(provider string, resp *resty.Response, err error) error {
	if err != nil {
		return &media.SubmissionError{Provider: provider, Err: err}
	}
	return &media.SubmissionError{
		Provider:   provider,
		StatusCode: resp.StatusCode(),
		Reason:     errorMessage(resp),
	}
}

// callFailure classifies a failed poll or cancel call.
func callFailure(provider, op string, resp *resty.Response, err error) error {
	if err != nil {
		return &media.TransportError{Provider: provider, Op: op, Err: err}
	}
	code := resp.StatusCode()
	te := &media.TransportError{
		Provider:   provider,
		Op:         op,
		StatusCode: code,
		Auth:       code == http.StatusUnauthorized || code == http.StatusForbidden,
	}
	if msg := errorMessage(resp); msg != "" {
		te.Err = errors.New(msg)
	}
	return te
}

// errorMessage extracts a human readable reason from an error body.
func errorMessage(resp *resty.Response) string {
	if resp == nil {
		return ""
	}
	body := strings.TrimSpace(resp.String())
	if body == "" {
		return http.StatusText(resp.StatusCode())
	}

	var payload struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != nil:
			return describe(payload.Error)
		case payload.Detail != nil:
			return describe(payload.Detail)
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if msg, ok := t["message"].(string); ok {
			return msg
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
