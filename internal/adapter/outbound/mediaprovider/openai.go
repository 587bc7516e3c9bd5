package mediaprovider

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"resty.dev/v3"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// OpenAIAdapter generates images synchronously with the OpenAI images API.
type OpenAIAdapter struct {
	client  *resty.Client
	catalog catalog
}

// NewOpenAIAdapter creates a new OpenAI image adapter.
func NewOpenAIAdapter(hc *http.Client, cfg VendorConfig) *OpenAIAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	client := newRestClient(hc, cfg.BaseURL)
	client.SetAuthToken(cfg.APIKey)

	return &OpenAIAdapter{
		client: client,
		catalog: newCatalog(cfg.Models, map[media.MediaType][]string{
			media.MediaTypeImage: {"dall-e-3", "dall-e-2", "gpt-image-1"},
		}),
	}
}

// Name returns the vendor name.
func (a *OpenAIAdapter) Name() string { return "openai" }

// Supports reports whether the model is served.
func (a *OpenAIAdapter) Supports(mediaType media.MediaType, model string) bool {
	return a.catalog.supports(mediaType, model)
}

// openAIImageRequest represents an OpenAI image generation request.
type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// openAIImageResponse represents an OpenAI image generation response.
type openAIImageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// Submit generates the image and returns its URL in the submission. The task
// id is minted locally because the API has none.
func (a *OpenAIAdapter) Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error) {
	body := &openAIImageRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		N:              1,
		Size:           paramString(req.Params, "size"),
		Quality:        paramString(req.Params, "quality"),
		Style:          paramString(req.Params, "style"),
		ResponseFormat: "url",
	}
	if body.Size == "" {
		body.Size = "1024x1024"
	}

	var out openAIImageResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/v1/images/generations")
	if err != nil || !resp.IsSuccess() {
		return nil, submitFailure(a.Name(), resp, err)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, &media.SubmissionError{Provider: a.Name(), StatusCode: resp.StatusCode(), Reason: "response contained no image"}
	}

	return &media.Submission{
		TaskID:   "openai-" + uuid.NewString(),
		Status:   media.TaskStatusCompleted,
		MediaURL: out.Data[0].URL,
	}, nil
}

// Poll is not supported; images are returned by Submit.
func (a *OpenAIAdapter) Poll(context.Context, string) (*media.PollResult, error) {
	return nil, media.ErrPollUnsupported
}

// Cancel is not supported; the request finished before a task existed.
func (a *OpenAIAdapter) Cancel(context.Context, string) (bool, error) {
	return false, nil
}

var _ outbound.MediaVendorPort = (*OpenAIAdapter)(nil)
