package modules

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/dynamo"
)

// Pipeline runs an ordered list of modules. The order is fixed once Setup
// has been called; every module sees the tendency left by its predecessors.
type Pipeline struct {
	modules []Module
	timer   *Timer
	log     *logrus.Entry
	ready   bool

	settings *Settings
	done     map[Module]bool
}

func NewPipeline(mods ...Module) *Pipeline {
	return &Pipeline{modules: mods, timer: NewTimer(nil)}
}

// Add appends a module. It has no effect after Setup.
func (p *Pipeline) Add(m Module) {
	if p.ready {
		return
	}
	p.modules = append(p.modules, m)
}

func (p *Pipeline) Modules() []Module { return p.modules }
func (p *Pipeline) Timer() *Timer     { return p.timer }

// Get returns the first module with the given name, or nil.
func (p *Pipeline) Get(name string) Module {
	for _, m := range p.modules {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Setup validates every enabled module against the decomposition and
// injects the shared settings. It fails before any module is set up when a
// module cannot run on this many ranks or needs a wider halo. Disabled
// modules are left alone until they are enabled.
func (p *Pipeline) Setup(s *Settings) error {
	if s.Log == nil {
		s.Log = logrus.StandardLogger().WithField("component", "pipeline")
	}
	p.log = s.Log
	if s.Tracer != nil {
		p.timer = NewTimer(s.Tracer)
	}

	for _, m := range p.modules {
		if !m.Enabled() {
			continue
		}
		if err := check(m, s); err != nil {
			return err
		}
	}
	p.settings = s
	p.done = make(map[Module]bool, len(p.modules))
	for _, m := range p.modules {
		if !m.Enabled() {
			continue
		}
		if err := p.setup(m); err != nil {
			return err
		}
	}
	p.ready = true
	return nil
}

func check(m Module, s *Settings) error {
	dec := s.Decomposition
	if dec == nil {
		return nil
	}
	if dec.Size() > 1 && !m.MPIAvailable() {
		return dynamo.Configf("pipeline", "module %s does not support %d ranks", m.Name(), dec.Size())
	}
	if m.RequiredHalo() > dec.Halo() {
		return dynamo.Configf("pipeline", "module %s needs halo %d, decomposition has %d", m.Name(), m.RequiredHalo(), dec.Halo())
	}
	return nil
}

func (p *Pipeline) setup(m Module) error {
	if err := m.Setup(p.settings); err != nil {
		return &dynamo.ModuleError{Module: m.Name(), Err: err}
	}
	p.done[m] = true
	return nil
}

// Start calls Start on every enabled module that has one.
func (p *Pipeline) Start() error {
	for _, m := range p.modules {
		if !m.Enabled() {
			continue
		}
		if s, ok := m.(Starter); ok {
			if err := s.Start(); err != nil {
				return &dynamo.ModuleError{Module: m.Name(), Err: err}
			}
		}
	}
	return nil
}

// Stop calls Stop on every enabled module that has one.
func (p *Pipeline) Stop() error {
	for _, m := range p.modules {
		if !m.Enabled() {
			continue
		}
		if s, ok := m.(Stopper); ok {
			if err := s.Stop(); err != nil {
				return &dynamo.ModuleError{Module: m.Name(), Err: err}
			}
		}
	}
	return nil
}

// Reset stops and restarts every enabled module.
func (p *Pipeline) Reset() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.Start()
}

// Compute applies every enabled module in order. A module enabled after
// Setup is checked and set up on its first call. The first failure aborts
// the step; modules that already ran are not rolled back.
func (p *Pipeline) Compute(ctx context.Context, st State) error {
	for _, m := range p.modules {
		if !m.Enabled() {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if p.ready && !p.done[m] {
			if err := check(m, p.settings); err != nil {
				return err
			}
			if err := p.setup(m); err != nil {
				return err
			}
		}

		err := p.timer.Time(ctx, m.Name(), "update", func(ctx context.Context) error {
			return m.Update(ctx, st)
		})
		if err != nil {
			return &dynamo.ModuleError{Module: m.Name(), Step: st.Iteration(), Err: err}
		}
	}
	return nil
}
