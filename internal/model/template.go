// internal/model/template.go
package model

type TemplateType string

const (
	TemplateText    TemplateType = "text"
	TemplateImage   TemplateType = "image"
	TemplateVideo   TemplateType = "video"
	TemplateButtons TemplateType = "buttons"
)

// TemplateButton is one option inside a buttons-template step. TargetStepID
// points at the step the button leads to, if any.
type TemplateButton struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	TargetStepID string `json:"targetStepId,omitempty"`
}

// TemplateStep is one node of a buttons template's branching graph.
type TemplateStep struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	MediaURL string           `json:"mediaUrl,omitempty"`
	Buttons  []TemplateButton `json:"buttons,omitempty"`
}

// TemplateContent holds the type-specific payload. Text is set for "text"
// templates; Caption/MediaURL for "image"/"video"; Steps plus StartStepID
// for "buttons".
type TemplateContent struct {
	Text        string         `json:"text,omitempty"`
	Caption     string         `json:"caption,omitempty"`
	MediaURL    string         `json:"mediaUrl,omitempty"`
	StartStepID string         `json:"startStepId,omitempty"`
	Steps       []TemplateStep `json:"steps,omitempty"`
}

// Template is a tagged variant keyed by Type. A full copy is frozen on the
// job as the template snapshot.
type Template struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Type    TemplateType    `json:"type"`
	Content TemplateContent `json:"content"`
}

// StartStep returns the designated entry step of a buttons template, falling
// back to the first step when StartStepID is unset or dangling.
func (t Template) StartStep() *TemplateStep {
	if len(t.Content.Steps) == 0 {
		return nil
	}
	if t.Content.StartStepID != "" {
		for i := range t.Content.Steps {
			if t.Content.Steps[i].ID == t.Content.StartStepID {
				return &t.Content.Steps[i]
			}
		}
	}
	return &t.Content.Steps[0]
}
