package mediaprovider

import (
	"context"
	"net/http"

	"resty.dev/v3"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// LumaAdapter drives Luma Dream Machine video generations.
type LumaAdapter struct {
	client  *resty.Client
	catalog catalog
}

// NewLumaAdapter creates a new Luma adapter.
func NewLumaAdapter(hc *http.Client, cfg VendorConfig) *LumaAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.lumalabs.ai"
	}
	client := newRestClient(hc, cfg.BaseURL)
	client.SetAuthToken(cfg.APIKey)

	return &LumaAdapter{
		client: client,
		catalog: newCatalog(cfg.Models, map[media.MediaType][]string{
			media.MediaTypeVideo: {"ray-2", "ray-flash-2", "ray-1-6"},
			media.MediaTypeImage: {"photon-1", "photon-flash-1"},
		}),
	}
}

// Name returns the vendor name.
func (a *LumaAdapter) Name() string { return "luma" }

// Supports reports whether the model is served.
func (a *LumaAdapter) Supports(mediaType media.MediaType, model string) bool {
	return a.catalog.supports(mediaType, model)
}

type lumaKeyframe struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type lumaRequest struct {
	Prompt      string                  `json:"prompt,omitempty"`
	Model       string                  `json:"model"`
	AspectRatio string                  `json:"aspect_ratio,omitempty"`
	Duration    string                  `json:"duration,omitempty"`
	Keyframes   map[string]lumaKeyframe `json:"keyframes,omitempty"`
	ImageRef    []lumaImageRef          `json:"image_ref,omitempty"`
}

type lumaImageRef struct {
	URL string `json:"url"`
}

type lumaGeneration struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video string `json:"video"`
		Image string `json:"image"`
	} `json:"assets"`
}

// Submit starts a generation.
func (a *LumaAdapter) Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error) {
	body := &lumaRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: paramString(req.Params, "aspect_ratio"),
		Duration:    paramString(req.Params, "duration"),
	}
	path := "/dream-machine/v1/generations"
	if req.MediaType == media.MediaTypeImage {
		path = "/dream-machine/v1/generations/image"
		if req.ReferenceURL != "" {
			body.ImageRef = []lumaImageRef{{URL: req.ReferenceURL}}
		}
	} else if req.ReferenceURL != "" {
		body.Keyframes = map[string]lumaKeyframe{"frame0": {Type: "image", URL: req.ReferenceURL}}
	}

	var out lumaGeneration
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil || !resp.IsSuccess() {
		return nil, submitFailure(a.Name(), resp, err)
	}
	if out.ID == "" {
		return nil, &media.SubmissionError{Provider: a.Name(), StatusCode: resp.StatusCode(), Reason: "response contained no generation id"}
	}

	res := out.pollResult()
	return &media.Submission{TaskID: out.ID, Status: res.Status, MediaURL: res.MediaURL}, nil
}

// Poll returns the generation state.
func (a *LumaAdapter) Poll(ctx context.Context, taskID string) (*media.PollResult, error) {
	var out lumaGeneration
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", taskID).
		SetResult(&out).
		Get("/dream-machine/v1/generations/{id}")
	if err != nil || !resp.IsSuccess() {
		return nil, callFailure(a.Name(), "poll", resp, err)
	}
	res := out.pollResult()
	return &res, nil
}

// Cancel deletes the generation.
func (a *LumaAdapter) Cancel(ctx context.Context, taskID string) (bool, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", taskID).
		Delete("/dream-machine/v1/generations/{id}")
	if err != nil {
		return false, callFailure(a.Name(), "cancel", resp, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if !resp.IsSuccess() {
		return false, callFailure(a.Name(), "cancel", resp, nil)
	}
	return true, nil
}

func (g *lumaGeneration) pollResult() media.PollResult {
	switch g.State {
	case "completed":
		url := g.Assets.Video
		if url == "" {
			url = g.Assets.Image
		}
		return media.PollResult{Status: media.TaskStatusCompleted, MediaURL: url, Progress: media.Progress(100)}
	case "failed":
		return media.PollResult{Status: media.TaskStatusFailed, Error: g.FailureReason}
	case "dreaming":
		return media.PollResult{Status: media.TaskStatusProcessing}
	default:
		return media.PollResult{Status: media.TaskStatusPending}
	}
}

var _ outbound.MediaVendorPort = (*LumaAdapter)(nil)
