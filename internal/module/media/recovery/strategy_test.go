package recovery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediagen/internal/domain/media"
)

type mockValidator struct {
	mu     sync.Mutex
	valid  map[string]bool
	probed []string
}

func newMockValidator(valid ...string) *mockValidator {
	v := &mockValidator{valid: make(map[string]bool)}
	for _, u := range valid {
		v.valid[u] = true
	}
	return v
}

func (m *mockValidator) Validate(_ context.Context, url string, _ media.MediaType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probed = append(m.probed, url)
	return m.valid[url]
}

func (m *mockValidator) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.probed...)
}

var testTemplates = []TemplateCandidate{
	{Name: "cdn-a", Template: "https://a.example/{task_id}.{ext}"},
	{Name: "cdn-b", Template: "https://b.example/v/{task_id}/out.{ext}", MediaTypes: []media.MediaType{media.MediaTypeVideo}},
	{Name: "cdn-c", Template: "https://c.example/{task_id}.{ext}"},
}

func TestTemplateCandidate_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		candidate TemplateCandidate
		mediaType media.MediaType
		wantURL   string
		wantOK    bool
	}{
		{"substitutes id and ext", testTemplates[0], media.MediaTypeImage, "https://a.example/t1.png", true},
		{"restricted media type matches", testTemplates[1], media.MediaTypeVideo, "https://b.example/v/t1/out.mp4", true},
		{"restricted media type skipped", testTemplates[1], media.MediaTypeAudio, "", false},
		{"empty template", TemplateCandidate{Name: "x"}, media.MediaTypeVideo, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, ok := tt.candidate.Resolve("t1", tt.mediaType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}

func TestStrategy_RecoverByTaskID(t *testing.T) {
	t.Run("first match wins", func(t *testing.T) {
		v := newMockValidator("https://b.example/v/t1/out.mp4", "https://c.example/t1.mp4")
		s := NewStrategy(v, testTemplates, nil, nil)

		res := s.RecoverByTaskID(context.Background(), "t1", media.MediaTypeVideo)

		require.True(t, res.Success)
		assert.NoError(t, res.Err)
		assert.Equal(t, "https://b.example/v/t1/out.mp4", res.URL)
		assert.Equal(t, []string{"https://a.example/t1.mp4", "https://b.example/v/t1/out.mp4"}, v.calls())
	})

	t.Run("exhausted is a result not a panic", func(t *testing.T) {
		v := newMockValidator()
		s := NewStrategy(v, testTemplates, nil, nil)

		res := s.RecoverByTaskID(context.Background(), "t1", media.MediaTypeAudio)

		assert.False(t, res.Success)
		assert.Empty(t, res.URL)
		assert.ErrorIs(t, res.Err, media.ErrRecoveryExhausted)
		assert.Len(t, v.calls(), 2)
	})

	t.Run("idempotent", func(t *testing.T) {
		v := newMockValidator("https://c.example/t2.png")
		s := NewStrategy(v, testTemplates, nil, nil)

		first := s.RecoverByTaskID(context.Background(), "t2", media.MediaTypeImage)
		second := s.RecoverByTaskID(context.Background(), "t2", media.MediaTypeImage)
		assert.Equal(t, first, second)
	})

	t.Run("canceled context stops probing", func(t *testing.T) {
		v := newMockValidator()
		s := NewStrategy(v, testTemplates, nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := s.RecoverByTaskID(ctx, "t1", media.MediaTypeVideo)
		assert.False(t, res.Success)
		assert.Empty(t, v.calls())
	})
}

func TestStrategy_RecoverByURL(t *testing.T) {
	v := newMockValidator("https://ok.example/x.mp4")
	s := NewStrategy(v, nil, nil, nil)

	res := s.RecoverByURL(context.Background(), "https://bogus/x.mp4", media.MediaTypeVideo)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, media.ErrRecoveryExhausted)

	res = s.RecoverByURL(context.Background(), "https://ok.example/x.mp4", media.MediaTypeVideo)
	assert.True(t, res.Success)
	assert.Equal(t, "https://ok.example/x.mp4", res.URL)

	res = s.RecoverByURL(context.Background(), "", media.MediaTypeVideo)
	assert.False(t, res.Success)
	assert.Empty(t, res.Tried)
}

func TestStrategy_SetTemplates(t *testing.T) {
	v := newMockValidator("https://new.example/t1.mp4")
	s := NewStrategy(v, testTemplates, nil, nil)
	assert.Len(t, s.Candidates(), 3)

	s.SetTemplates([]TemplateCandidate{{Name: "new", Template: "https://new.example/{task_id}.{ext}"}})

	require.Len(t, s.Candidates(), 1)
	res := s.RecoverByTaskID(context.Background(), "t1", media.MediaTypeVideo)
	assert.True(t, res.Success)
}
