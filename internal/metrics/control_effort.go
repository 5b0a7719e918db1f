package metrics

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/model"
)

// ControlEffort is the mean absolute ramp control factor over the observed
// steps. A ramped run that ends fully nonlinear averages below one.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string  { return c.name }
func (c *ControlEffort) Interval() int { return 1 }

func (c *ControlEffort) Observe(_ context.Context, st *model.State) error {
	c.sum += math.Abs(st.Control())
	c.samples++
	return nil
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
