// Package progress reports the advance of a model run to a terminal or a
// log.
package progress

import (
	"github.com/sirupsen/logrus"
)

// Update is one progress sample taken on rank 0.
type Update struct {
	Step   int
	Total  int
	Time   float64
	Energy float64
	Drift  float64
	CFL    float64
}

func (u Update) Fraction() float64 {
	if u.Total <= 0 {
		return 0
	}
	return min(float64(u.Step)/float64(u.Total), 1)
}

// Reporter receives the updates of one run. Report and Finish are called
// from the goroutine driving rank 0.
type Reporter interface {
	Start(title string, total int)
	Report(u Update)
	Finish(err error)
}

// Discard drops every update.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Start(string, int) {}
func (discard) Report(Update)     {}
func (discard) Finish(error)      {}

// LogReporter writes updates as structured log entries.
type LogReporter struct {
	log   *logrus.Entry
	title string
}

func NewLogReporter(log *logrus.Entry) *LogReporter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogReporter{log: log}
}

func (r *LogReporter) Start(title string, total int) {
	r.title = title
	r.log.WithFields(logrus.Fields{"run": title, "steps": total}).Info("run started")
}

func (r *LogReporter) Report(u Update) {
	r.log.WithFields(logrus.Fields{
		"run":    r.title,
		"step":   u.Step,
		"t":      u.Time,
		"energy": u.Energy,
		"drift":  u.Drift,
		"cfl":    u.CFL,
	}).Info("progress")
}

func (r *LogReporter) Finish(err error) {
	if err != nil {
		r.log.WithError(err).WithField("run", r.title).Error("run failed")
		return
	}
	r.log.WithField("run", r.title).Info("run finished")
}
