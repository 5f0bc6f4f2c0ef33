package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klokku/calwindow/pkg/schedule"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// NewRenderer returns the renderer for an output format name.
func NewRenderer(format string) (schedule.Renderer, error) {
	switch format {
	case FormatJSON, "":
		return NewJsonRenderer(), nil
	case FormatCSV:
		return NewCsvRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

type JsonRendererImpl struct{}

func NewJsonRenderer() *JsonRendererImpl {
	return &JsonRendererImpl{}
}

// Render writes the window as two-space indented JSON. Non-ASCII text is kept as is.
func (r *JsonRendererImpl) Render(window schedule.ScheduleWindow) ([]byte, error) {
	var b bytes.Buffer
	encoder := json.NewEncoder(&b)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(window); err != nil {
		return nil, fmt.Errorf("failed to encode schedule window: %w", err)
	}
	return b.Bytes(), nil
}

func (r *JsonRendererImpl) ContentType() string {
	return "application/json"
}
