package metrics

import (
	"github.com/san-kum/flowsim/internal/model"
)

// Metric is a model diagnostic that folds the observed states into one
// number.
type Metric interface {
	model.Diagnostic
	Value() float64
	Reset()
}

func interval(every int) int {
	if every < 1 {
		return 1
	}
	return every
}
