package mediaprovider

import (
	"context"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// PiAPIAdapter drives the PiAPI unified task API (Kling video, Midjourney and
// Flux images).
type PiAPIAdapter struct {
	client  *resty.Client
	catalog catalog
}

// NewPiAPIAdapter creates a new PiAPI adapter.
func NewPiAPIAdapter(hc *http.Client, cfg VendorConfig) *PiAPIAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.piapi.ai"
	}
	client := newRestClient(hc, cfg.BaseURL)
	client.SetHeader("X-API-Key", cfg.APIKey)

	return &PiAPIAdapter{
		client: client,
		catalog: newCatalog(cfg.Models, map[media.MediaType][]string{
			media.MediaTypeVideo: {"kling"},
			media.MediaTypeImage: {"midjourney", "Qubico/flux1-schnell"},
		}),
	}
}

// Name returns the vendor name.
func (a *PiAPIAdapter) Name() string { return "piapi" }

// Supports reports whether the model is served.
func (a *PiAPIAdapter) Supports(mediaType media.MediaType, model string) bool {
	return a.catalog.supports(mediaType, model)
}

type piapiTaskRequest struct {
	Model    string         `json:"model"`
	TaskType string         `json:"task_type"`
	Input    map[string]any `json:"input"`
}

type piapiEnvelope struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    piapiTask `json:"data"`
}

type piapiTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Output struct {
		Progress *int   `json:"progress"`
		VideoURL string `json:"video_url"`
		ImageURL string `json:"image_url"`
		Video    struct {
			URL string `json:"resource_without_watermark"`
		} `json:"works_video"`
	} `json:"output"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit creates a task.
func (a *PiAPIAdapter) Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error) {
	input := map[string]any{}
	for k, v := range req.Params {
		input[k] = v
	}
	if req.Prompt != "" {
		input["prompt"] = req.Prompt
	}

	body := &piapiTaskRequest{Model: req.Model, Input: input}
	switch req.MediaType {
	case media.MediaTypeVideo:
		body.TaskType = "video_generation"
		if req.ReferenceURL != "" {
			input["image_url"] = req.ReferenceURL
		}
	default:
		body.TaskType = "imagine"
		if strings.Contains(req.Model, "flux") {
			body.TaskType = "txt2img"
			if req.ReferenceURL != "" {
				body.TaskType = "img2img"
				input["image"] = req.ReferenceURL
			}
		}
	}

	var out piapiEnvelope
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/api/v1/task")
	if err != nil || !resp.IsSuccess() {
		return nil, submitFailure(a.Name(), resp, err)
	}
	if out.Code != 0 && out.Code != http.StatusOK {
		return nil, &media.SubmissionError{Provider: a.Name(), StatusCode: out.Code, Reason: out.Message}
	}
	if out.Data.TaskID == "" {
		return nil, &media.SubmissionError{Provider: a.Name(), StatusCode: resp.StatusCode(), Reason: "response contained no task id"}
	}

	res := out.Data.pollResult()
	return &media.Submission{TaskID: out.Data.TaskID, Status: res.Status, MediaURL: res.MediaURL}, nil
}

// Poll returns the task state.
func (a *PiAPIAdapter) Poll(ctx context.Context, taskID string) (*media.PollResult, error) {
	var out piapiEnvelope
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", taskID).
		SetResult(&out).
		Get("/api/v1/task/{id}")
	if err != nil || !resp.IsSuccess() {
		return nil, callFailure(a.Name(), "poll", resp, err)
	}
	res := out.Data.pollResult()
	return &res, nil
}

// Cancel cancels a task that has not started rendering.
func (a *PiAPIAdapter) Cancel(ctx context.Context, taskID string) (bool, error) {
	var out piapiEnvelope
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", taskID).
		SetResult(&out).
		Delete("/api/v1/task/{id}")
	if err != nil {
		return false, callFailure(a.Name(), "cancel", resp, err)
	}
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusBadRequest {
		return false, nil
	}
	if !resp.IsSuccess() {
		return false, callFailure(a.Name(), "cancel", resp, nil)
	}
	return true, nil
}

func (t *piapiTask) pollResult() media.PollResult {
	res := media.PollResult{Progress: t.Output.Progress}
	switch strings.ToLower(t.Status) {
	case "completed":
		res.Status = media.TaskStatusCompleted
		res.MediaURL = t.Output.VideoURL
		if res.MediaURL == "" {
			res.MediaURL = t.Output.Video.URL
		}
		if res.MediaURL == "" {
			res.MediaURL = t.Output.ImageURL
		}
	case "failed":
		res.Status = media.TaskStatusFailed
		res.Error = t.Error.Message
	case "processing":
		res.Status = media.TaskStatusProcessing
	default:
		res.Status = media.TaskStatusPending
	}
	return res
}

var _ outbound.MediaVendorPort = (*PiAPIAdapter)(nil)
