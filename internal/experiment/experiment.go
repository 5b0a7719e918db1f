package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/flowsim/internal/config"
	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/metrics"
	"github.com/san-kum/flowsim/internal/model"
	sw "github.com/san-kum/flowsim/internal/physics/shallowwater"
	"github.com/san-kum/flowsim/internal/progress"
	"github.com/san-kum/flowsim/internal/storage"
)

// Series columns recorded by Run.
var SeriesNames = []string{"energy", "drift", "cfl", "h_max"}

// stabilityThreshold flags fields that left the small amplitude regime.
const stabilityThreshold = 10.0

// Outcome summarizes a finished run. It is assembled on rank 0.
type Outcome struct {
	Steps   int
	Time    float64
	Series  *storage.Series
	Metrics map[string]float64
	Timers  string
	Elapsed time.Duration
}

type Experiment struct {
	cfg      *config.Config
	log      *logrus.Entry
	tracer   trace.Tracer
	reporter progress.Reporter
}

type Option func(*Experiment)

func WithLogger(l *logrus.Entry) Option { return func(e *Experiment) { e.log = l } }

func WithTracer(t trace.Tracer) Option { return func(e *Experiment) { e.tracer = t } }

func WithReporter(r progress.Reporter) Option { return func(e *Experiment) { e.reporter = r } }

// New validates cfg and prepares an experiment. cfg must not change
// while the experiment runs.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{cfg: cfg, reporter: progress.Discard}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.StandardLogger().WithField("component", "experiment")
	}
	return e, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) setup(ctx context.Context, comm domain.Communicator) (*domain.Decomposition, *model.Model, error) {
	log := e.log.WithField("rank", comm.Rank())
	dec, err := e.cfg.GridSpec().Decompose(comm, log)
	if err != nil {
		return nil, nil, err
	}
	z0, err := InitialState(ctx, dec, e.cfg)
	if err != nil {
		return nil, nil, err
	}
	m, err := sw.NewModel(dec, e.cfg.ModelOptions(log, e.tracer), z0)
	if err != nil {
		return nil, nil, err
	}
	return dec, m, nil
}

// sampler records the run series on rank 0 and forwards progress.
type sampler struct {
	energy *sw.EnergyLogger
	grid   sw.Grid
	params sw.Params
	dt     float64
	total  int

	series   *storage.Series
	reporter progress.Reporter
}

func (s *sampler) Name() string  { return "sampler" }
func (s *sampler) Interval() int { return s.energy.Interval() }

func (s *sampler) Observe(ctx context.Context, st *model.State) error {
	if err := s.energy.Observe(ctx, st); err != nil {
		return err
	}
	cfl, err := sw.MaxCFL(ctx, st.Z, s.grid, s.params, s.dt)
	if err != nil {
		return err
	}
	hmax, err := st.Z.Field("h").MaxAbs(ctx)
	if err != nil {
		return err
	}
	if s.series == nil {
		return nil
	}
	d := s.energy.Drift()
	s.series.Append(st.T, d.Current(), d.Value(), cfl, hmax)
	s.reporter.Report(progress.Update{
		Step:   st.It,
		Total:  s.total,
		Time:   st.T,
		Energy: d.Current(),
		Drift:  d.Value(),
		CFL:    cfl,
	})
	return nil
}

// Run integrates the configured scenario on cfg.Ranks in-process ranks.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Metrics: make(map[string]float64)}
	start := time.Now()

	err := domain.Run(ctx, e.cfg.Ranks, func(ctx context.Context, comm domain.Communicator) error {
		_, m, err := e.setup(ctx, comm)
		if err != nil {
			return err
		}
		n, err := m.Steps(e.cfg.RunSpec())
		if err != nil {
			return err
		}
		root := comm.Rank() == 0
		log := e.log.WithField("rank", comm.Rank())

		smp := &sampler{
			energy: sw.NewEnergyLogger(e.cfg.GridSpec(), e.cfg.Physics, e.cfg.EnergyEvery, log),
			grid:   e.cfg.GridSpec(),
			params: e.cfg.Physics,
			dt:     e.cfg.Dt,
			total:  n,
		}
		stab := metrics.NewStability(stabilityThreshold, e.cfg.EnergyEvery)
		cfl := metrics.NewCFL(func(ctx context.Context, st *model.State) (float64, error) {
			return sw.MaxCFL(ctx, st.Z, e.cfg.GridSpec(), e.cfg.Physics, e.cfg.Dt)
		}, e.cfg.EnergyEvery)
		if root {
			smp.series = storage.NewSeries(SeriesNames...)
			smp.reporter = e.reporter
			e.reporter.Start(e.cfg.Scenario, n)
		}

		// step zero
		if err := smp.Observe(ctx, m.State()); err != nil {
			return err
		}
		m.AddDiagnostic(smp)
		m.AddDiagnostic(stab)
		m.AddDiagnostic(cfl)

		if err := m.Start(); err != nil {
			return err
		}
		runErr := m.Run(ctx, model.RunSpec{Steps: n})
		if err := m.Stop(); err != nil && runErr == nil {
			runErr = err
		}
		if root {
			e.reporter.Finish(runErr)
		}
		if runErr != nil {
			return runErr
		}

		if root {
			st := m.State()
			out.Steps, out.Time = st.It, st.T
			out.Series = smp.series
			out.Metrics["energy_initial"] = smp.energy.Drift().Initial()
			out.Metrics["energy_final"] = smp.energy.Drift().Current()
			out.Metrics[smp.energy.Drift().Name()] = smp.energy.Drift().Value()
			out.Metrics[stab.Name()] = stab.Value()
			out.Metrics[cfl.Name()] = cfl.Value()
			for _, t := range m.Pipeline().Timer().Entries() {
				out.Metrics["time_"+t.Module] = t.Total.Seconds()
			}
			out.Timers = m.Pipeline().Timer().String()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", e.cfg.Scenario, err)
	}
	out.Elapsed = time.Since(start)
	return out, nil
}
