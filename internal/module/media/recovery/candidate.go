package recovery

import (
	"strings"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// Candidate produces at most one URL worth probing for a task.
type Candidate interface {
	// Label names the candidate in logs and metrics.
	Label() string
	// Resolve returns the URL to probe, or false if the candidate does not
	// apply to the task.
	Resolve(taskID string, mediaType media.MediaType) (string, bool)
}

// TemplateCandidate derives a URL from a provider URL shape. The template may
// contain {task_id} and {ext}.
type TemplateCandidate struct {
	Name       string
	Template   string
	MediaTypes []media.MediaType
}

// Label implements Candidate.
func (c TemplateCandidate) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return "template"
}

// Resolve implements Candidate.
func (c TemplateCandidate) Resolve(taskID string, mediaType media.MediaType) (string, bool) {
	if taskID == "" || c.Template == "" || !c.appliesTo(mediaType) {
		return "", false
	}
	r := strings.NewReplacer("{task_id}", taskID, "{ext}", mediaType.Extension())
	return r.Replace(c.Template), true
}

func (c TemplateCandidate) appliesTo(mediaType media.MediaType) bool {
	if len(c.MediaTypes) == 0 {
		return true
	}
	for _, mt := range c.MediaTypes {
		if mt == mediaType {
			return true
		}
	}
	return false
}

// DirectURLCandidate probes a fixed URL.
type DirectURLCandidate struct {
	URL string
}

// Label implements Candidate.
func (c DirectURLCandidate) Label() string { return "direct" }

// Resolve implements Candidate.
func (c DirectURLCandidate) Resolve(string, media.MediaType) (string, bool) {
	return c.URL, c.URL != ""
}
