package layout

import (
	"fmt"

	"github.com/tnpagents/processmate/pkg/bpmn/textmetrics"
)

// Config holds every geometric constant of a diagram. All values are in
// BPMN DI pixels. Lanes are vertical columns; the pool header and each lane
// header are bands at the top.
type Config struct {
	LaneMargin   float64 `toml:"lane_margin" json:"lane_margin"`     // x of the first lane's left edge
	LaneWidth    float64 `toml:"lane_width" json:"lane_width"`       // width of every lane
	PoolTop      float64 `toml:"pool_top" json:"pool_top"`           // y of the pool's top edge
	HeaderHeight float64 `toml:"header_height" json:"header_height"` // pool and lane label bands
	TopMargin    float64 `toml:"top_margin" json:"top_margin"`       // y of the first node in each lane
	LanePadding  float64 `toml:"lane_padding" json:"lane_padding"`   // space below the tallest lane content

	TaskWidth       float64 `toml:"task_width" json:"task_width"`
	GatewaySize     float64 `toml:"gateway_size" json:"gateway_size"`
	EventSize       float64 `toml:"event_size" json:"event_size"`
	VerticalSpacing float64 `toml:"vertical_spacing" json:"vertical_spacing"`

	AnnotationGap    float64 `toml:"annotation_gap" json:"annotation_gap"`
	AnnotationWidth  float64 `toml:"annotation_width" json:"annotation_width"`
	AnnotationHeight float64 `toml:"annotation_height" json:"annotation_height"`

	CorridorGap float64 `toml:"corridor_gap" json:"corridor_gap"` // clearance between connectors and nodes
	SlotSpacing float64 `toml:"slot_spacing" json:"slot_spacing"` // distance between parallel connectors
	LabelOffset float64 `toml:"label_offset" json:"label_offset"`
	LabelWidth  float64 `toml:"label_width" json:"label_width"`
	LabelHeight float64 `toml:"label_height" json:"label_height"`

	FontSize float64             `toml:"font_size" json:"font_size"`
	Text     textmetrics.Metrics `toml:"text" json:"text"`
}

// DefaultConfig returns the geometry used when nothing is configured.
//
// Tasks are 170px wide in 360px lanes, which leaves room for a 72px tool
// annotation to the right of a task without crossing into the next lane.
// Task heights follow the label: 24 characters per 18px line with 12px of
// vertical padding, between 80 and 200px. The character width is calibrated
// from FontSize when Text.CharWidth is zero.
func DefaultConfig() Config {
	return Config{
		LaneMargin:   80,
		LaneWidth:    360,
		PoolTop:      40,
		HeaderHeight: 30,
		TopMargin:    130,
		LanePadding:  50,

		TaskWidth:       170,
		GatewaySize:     50,
		EventSize:       36,
		VerticalSpacing: 50,

		AnnotationGap:    12,
		AnnotationWidth:  72,
		AnnotationHeight: 40,

		CorridorGap: 20,
		SlotSpacing: 8,
		LabelOffset: 6,
		LabelWidth:  48,
		LabelHeight: 14,

		FontSize: 12,
		Text: textmetrics.Metrics{
			CharsPerLine:      24,
			LineHeight:        18,
			PaddingVertical:   12,
			PaddingHorizontal: 8,
			MinHeight:         80,
			MaxHeight:         200,
		},
	}
}

// Metrics returns the text metrics with the character width resolved.
func (c Config) Metrics() textmetrics.Metrics {
	m := c.Text
	if m.CharWidth <= 0 {
		m.CharWidth = textmetrics.CharWidthFor(c.FontSize)
	}
	return m
}

// LaneLeft returns the x of lane i's left edge.
func (c Config) LaneLeft(i int) float64 {
	return c.LaneMargin + float64(i)*c.LaneWidth
}

// LaneCenter returns the x of lane i's center line.
func (c Config) LaneCenter(i int) float64 {
	return c.LaneLeft(i) + c.LaneWidth/2
}

// Validate rejects geometry the layout cannot honour.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"lane_width", c.LaneWidth},
		{"task_width", c.TaskWidth},
		{"gateway_size", c.GatewaySize},
		{"event_size", c.EventSize},
		{"text.line_height", c.Text.LineHeight},
		{"text.min_height", c.Text.MinHeight},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("layout: %s must be positive, got %v", p.name, p.v)
		}
	}
	if c.VerticalSpacing < 0 || c.CorridorGap < 0 || c.SlotSpacing < 0 {
		return fmt.Errorf("layout: spacing values must not be negative")
	}
	widest := max(c.TaskWidth, c.GatewaySize, c.EventSize)
	if widest+2*c.CorridorGap > c.LaneWidth {
		return fmt.Errorf("layout: lane_width %v leaves no corridor around %vpx nodes", c.LaneWidth, widest)
	}
	if c.Text.MaxHeight > 0 && c.Text.MaxHeight < c.Text.MinHeight {
		return fmt.Errorf("layout: text.max_height %v is below text.min_height %v", c.Text.MaxHeight, c.Text.MinHeight)
	}
	if c.TopMargin < c.PoolTop+2*c.HeaderHeight {
		return fmt.Errorf("layout: top_margin %v overlaps the pool and lane headers", c.TopMargin)
	}
	return nil
}
