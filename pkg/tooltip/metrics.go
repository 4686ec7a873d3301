package tooltip

import "golang.org/x/net/html"

// Box is a pixel rectangle in viewport coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Bottom returns the first y coordinate below the box.
func (b Box) Bottom() int {
	return b.Y + b.H
}

// Right returns the first x coordinate right of the box.
func (b Box) Right() int {
	return b.X + b.W
}

// Metrics supplies the geometry the controller positions tooltips with.
// Rendering happens outside this process, so all three measurements come
// from the caller; FixedMetrics serves when no real geometry exists.
type Metrics interface {
	// MarkerBox returns the marker's bounding box.
	MarkerBox(marker *html.Node) Box

	// TooltipBox returns the tooltip's intrinsic size. X and Y are ignored.
	TooltipBox(tip *html.Node) Box

	// Viewport returns the visible area. X and Y are ignored.
	Viewport() Box
}

// FixedMetrics is a Metrics that answers with constant boxes.
type FixedMetrics struct {
	Marker  Box
	Tooltip Box
	Screen  Box
}

func (m FixedMetrics) MarkerBox(*html.Node) Box { return m.Marker }
func (m FixedMetrics) TooltipBox(*html.Node) Box { return m.Tooltip }
func (m FixedMetrics) Viewport() Box { return m.Screen }

// DefaultMetrics places every marker near the top left of a laptop-sized
// viewport. Good enough for headless use where only the tooltip's existence
// and content matter.
func DefaultMetrics() FixedMetrics {
	return FixedMetrics{
		Marker:  Box{X: 40, Y: 40, W: 80, H: 20},
		Tooltip: Box{W: 260, H: 120},
		Screen:  Box{W: 1280, H: 800},
	}
}
