package reschedule

import (
	"math"
	"time"

	"github.com/zulandar/foreman/internal/schedule"
)

// State is a task's position in the drag lifecycle.
type State int

// Drag lifecycle states.
const (
	Idle State = iota
	Dragging
	Committing
	RollingBack
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case RollingBack:
		return "rolling_back"
	}
	return "idle"
}

// Point is a pointer position in screen pixels.
type Point struct {
	X, Y float64
}

// DropTarget is where a dragged task was released. Date moves the task on
// the timeline, Status moves it to a board column, and Prev/Next name the
// neighbours it was dropped between. A target with neither Date nor Status
// is unresolvable.
type DropTarget struct {
	Date   *time.Time `json:"date,omitempty"`
	Status string     `json:"status,omitempty"`
	Prev   string     `json:"prev,omitempty"`
	Next   string     `json:"next,omitempty"`
}

func (d DropTarget) resolvable() bool {
	return d.Date != nil || schedule.ValidStatus(d.Status)
}

// gesture tracks one pointer interaction. It stays Idle until the pointer
// travels past the activation distance, so a click never starts a drag.
type gesture struct {
	origin Point
	state  State
}

func (g *gesture) move(p Point, activation float64) State {
	if g.state == Idle && math.Hypot(p.X-g.origin.X, p.Y-g.origin.Y) >= activation {
		g.state = Dragging
	}
	return g.state
}
