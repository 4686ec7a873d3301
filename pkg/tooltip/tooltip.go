// Package tooltip manages the single-flight hover tooltip: one tooltip node
// exists at a time, identified by a fixed id, shown synchronously on
// hover-enter and removed after a short debounce on hover-leave so the
// pointer can cross marker boundaries without flicker.
//
// The controller is an explicit state machine, idle, visible or pending-hide,
// driven by Show, ScheduleHide and HideNow. Timers run through a Clock and
// geometry through a Metrics, both injectable, so every transition is
// deterministic under test.
package tooltip

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/highlight"
)

// ID is the well-known element id of the tooltip node.
const ID = "deutsch-spectrum-tooltip"

// DefaultHideDelay is the hover-leave debounce.
const DefaultHideDelay = 100 * time.Millisecond

// hoverGap separates the tooltip from the marker's edge, in pixels.
const hoverGap = 6

// State is the controller's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateVisible
	StatePendingHide
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVisible:
		return "visible"
	case StatePendingHide:
		return "pending-hide"
	default:
		return "unknown"
	}
}

// Position is where the tooltip was placed, after viewport clamping.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`

	// Above is set when the tooltip flipped above the marker because it
	// would have overflowed the bottom of the viewport.
	Above bool `json:"above"`
}

// Controller owns the tooltip lifecycle. One controller serves a whole
// process; its tooltip node is a singleton across every document it touches.
type Controller struct {
	mu      sync.Mutex
	clock   Clock
	metrics Metrics
	delay   time.Duration

	state   State
	node    *html.Node
	pending Timer
	pos     Position
}

// NewController builds a controller. A nil clock falls back to the wall
// clock, a nil metrics to DefaultMetrics.
func NewController(clock Clock, metrics Metrics) *Controller {
	if clock == nil {
		clock = RealClock()
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	return &Controller{
		clock:   clock,
		metrics: metrics,
		delay:   DefaultHideDelay,
	}
}

// SetHideDelay overrides the hover-leave debounce.
func (c *Controller) SetHideDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.delay = d
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Node returns the live tooltip element, nil when hidden.
func (c *Controller) Node() *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.node
}

// Position returns where the last shown tooltip was placed.
func (c *Controller) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Show displays the tooltip for marker: any pending hide is cancelled, any
// existing tooltip node is removed, and a fresh one is built from the
// marker's stamped metadata, attached to the marker's document and positioned
// below the marker, clamped to the viewport. Synchronous throughout.
func (c *Controller) Show(ctx context.Context, marker *html.Node) (*html.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := highlight.InfoFromMarker(marker)
	if !ok {
		return nil, errors.New("showing tooltip: node is not a marker")
	}

	c.cancelPending()
	c.removeNode()

	root := dom.Root(marker)
	// a tooltip from an earlier process state may still sit in this tree
	if stale := dom.FindByAttr(root, "id", ID); stale != nil {
		dom.Detach(stale)
	}

	tip := build(info)
	dom.Body(root).AppendChild(tip)
	c.pos = c.place(marker, tip)
	dom.SetAttr(tip, "style", styleFor(c.pos))

	c.node = tip
	c.state = StateVisible

	zerolog.Ctx(ctx).Debug().
		Str("marker", info.ID).
		Str("lemma", info.Lemma).
		Int("x", c.pos.X).
		Int("y", c.pos.Y).
		Msg("tooltip shown")
	return tip, nil
}

// ScheduleHide starts the hide debounce. A hide already pending is left
// alone; with no tooltip visible this is a no-op. The removal happens after
// the delay unless Show is called first.
func (c *Controller) ScheduleHide(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateVisible {
		return
	}
	c.pending = c.clock.AfterFunc(c.delay, func() {
		c.expireHide(ctx)
	})
	c.state = StatePendingHide
	zerolog.Ctx(ctx).Debug().Dur("delay", c.delay).Msg("tooltip hide scheduled")
}

// HideNow removes the tooltip unconditionally and cancels any pending hide.
func (c *Controller) HideNow(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPending()
	c.removeNode()
	c.state = StateIdle
	zerolog.Ctx(ctx).Debug().Msg("tooltip hidden")
}

func (c *Controller) expireHide(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a Show since scheduling wins
	if c.state != StatePendingHide {
		return
	}
	c.removeNode()
	c.pending = nil
	c.state = StateIdle
	zerolog.Ctx(ctx).Debug().Msg("tooltip hide expired")
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) removeNode() {
	if c.node != nil {
		dom.Detach(c.node)
		c.node = nil
	}
}

// place positions tip under marker, flipping above on bottom overflow and
// shifting left on right overflow, clamped to non-negative coordinates.
func (c *Controller) place(marker, tip *html.Node) Position {
	m := c.metrics.MarkerBox(marker)
	t := c.metrics.TooltipBox(tip)
	v := c.metrics.Viewport()

	pos := Position{X: m.X, Y: m.Bottom() + hoverGap}
	if pos.Y+t.H > v.H {
		pos.Y = m.Y - t.H - hoverGap
		pos.Above = true
	}
	if pos.X+t.W > v.W {
		pos.X = v.W - t.W
	}
	if pos.X < 0 {
		pos.X = 0
	}
	if pos.Y < 0 {
		pos.Y = 0
	}
	return pos
}

func styleFor(pos Position) string {
	return fmt.Sprintf("position:fixed;left:%dpx;top:%dpx;z-index:2147483647", pos.X, pos.Y)
}

// build renders info into the tooltip subtree. Everything the tooltip shows
// comes from the marker's attributes; no analysis data is consulted.
func build(info highlight.MarkerInfo) *html.Node {
	tip := dom.NewElement("div")
	dom.SetAttr(tip, "id", ID)
	dom.SetAttr(tip, "class", "deutsch-spectrum-tooltip")

	headline := info.Lemma
	if headline == "" {
		headline = info.Text
	}
	head := dom.NewElement("strong")
	head.AppendChild(dom.NewText(headline))
	tip.AppendChild(line("ds-tooltip-lemma", head))

	if info.Label != "" {
		tip.AppendChild(textLine("ds-tooltip-pos", info.Label))
	}

	var badges []string
	if info.Separable {
		badges = append(badges, "trennbar")
	}
	if info.Reflexive {
		badges = append(badges, "reflexiv")
	}
	if len(badges) > 0 {
		tip.AppendChild(textLine("ds-tooltip-badges", strings.Join(badges, " · ")))
	}

	if info.Prepositions != "" {
		tip.AppendChild(textLine("ds-tooltip-preps", "Präpositionen: "+info.Prepositions))
	}
	if info.GovernsCase != "" {
		tip.AppendChild(textLine("ds-tooltip-case", "regiert "+info.GovernsCase))
	}
	return tip
}

func line(class string, child *html.Node) *html.Node {
	div := dom.NewElement("div")
	dom.SetAttr(div, "class", class)
	div.AppendChild(child)
	return div
}

func textLine(class, text string) *html.Node {
	return line(class, dom.NewText(text))
}
