package mediaprovider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"resty.dev/v3"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabsAdapter synthesizes speech. The API answers with audio bytes,
// which are uploaded to object storage to obtain a URL.
type ElevenLabsAdapter struct {
	client  *resty.Client
	storage outbound.ObjectStoragePort
	voiceID string
	catalog catalog
}

// NewElevenLabsAdapter creates a new ElevenLabs adapter.
func NewElevenLabsAdapter(hc *http.Client, cfg VendorConfig, storage outbound.ObjectStoragePort) *ElevenLabsAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	client := newRestClient(hc, cfg.BaseURL)
	client.SetHeader("xi-api-key", cfg.APIKey)

	return &ElevenLabsAdapter{
		client:  client,
		storage: storage,
		voiceID: cfg.VoiceID,
		catalog: newCatalog(cfg.Models, map[media.MediaType][]string{
			media.MediaTypeAudio: {"eleven_multilingual_v2", "eleven_turbo_v2_5", "eleven_flash_v2_5"},
		}),
	}
}

// Name returns the vendor name.
func (a *ElevenLabsAdapter) Name() string { return "elevenlabs" }

// Supports reports whether the model is served.
func (a *ElevenLabsAdapter) Supports(mediaType media.MediaType, model string) bool {
	return a.catalog.supports(mediaType, model)
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Submit synthesizes the prompt and stores the audio.
func (a *ElevenLabsAdapter) Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error) {
	if a.storage == nil {
		return nil, &media.SubmissionError{Provider: a.Name(), Reason: "object storage is not configured"}
	}
	voice := paramString(req.Params, "voice_id")
	if voice == "" {
		voice = a.voiceID
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "audio/mpeg").
		SetPathParam("voice", voice).
		SetBody(&elevenLabsRequest{Text: req.Prompt, ModelID: req.Model}).
		Post("/v1/text-to-speech/{voice}")
	if err != nil || !resp.IsSuccess() {
		return nil, submitFailure(a.Name(), resp, err)
	}

	audio := resp.Bytes()
	if len(audio) == 0 {
		return nil, &media.SubmissionError{Provider: a.Name(), StatusCode: resp.StatusCode(), Reason: "empty audio response"}
	}

	taskID := "elevenlabs-" + uuid.NewString()
	key := fmt.Sprintf("audio/%s.%s", taskID, media.MediaTypeAudio.Extension())
	url, err := a.storage.Put(ctx, key, bytes.NewReader(audio), int64(len(audio)), "audio/mpeg")
	if err != nil {
		return nil, &media.SubmissionError{Provider: a.Name(), Reason: "store audio", Err: err}
	}

	return &media.Submission{TaskID: taskID, Status: media.TaskStatusCompleted, MediaURL: url}, nil
}

// Poll is not supported; audio is returned by Submit.
func (a *ElevenLabsAdapter) Poll(context.Context, string) (*media.PollResult, error) {
	return nil, media.ErrPollUnsupported
}

// Cancel is not supported.
func (a *ElevenLabsAdapter) Cancel(context.Context, string) (bool, error) {
	return false, nil
}

var _ outbound.MediaVendorPort = (*ElevenLabsAdapter)(nil)
