package balance_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/flowsim/internal/balance"
	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/integrators"
	"github.com/san-kum/flowsim/internal/model"
	"github.com/san-kum/flowsim/internal/modules"
	sw "github.com/san-kum/flowsim/internal/physics/shallowwater"
)

type jetSetup struct {
	grid    sw.Grid
	params  sw.Params
	dec     *domain.Decomposition
	z       *field.State
	proj    *sw.GeostrophicProjector
	factory balance.ModelFactory
}

func newJet(ctx context.Context, comm domain.Communicator, ro float64) (*jetSetup, error) {
	s := &jetSetup{grid: sw.NewGrid(16, 1), params: sw.Params{F0: 1, Csqr: 1, Ro: ro}}
	var err error
	if s.dec, err = s.grid.Decompose(comm, quietLog()); err != nil {
		return nil, err
	}
	if s.z, err = sw.NewState(s.dec); err != nil {
		return nil, err
	}
	if err := sw.GeostrophicJet(ctx, s.z, s.grid, s.params, 0.05, 0.02); err != nil {
		return nil, err
	}
	if s.proj, err = sw.NewGeostrophicProjector(s.dec, s.grid, s.params); err != nil {
		return nil, err
	}
	s.factory = func(z *field.State) (*model.Model, error) {
		return sw.NewModel(s.dec, sw.Options{Grid: s.grid, Params: s.params, Dt: 0.02, Log: quietLog()}, z)
	}
	return s, nil
}

// lifecycle counts Start and Stop calls and leaves the tendency alone.
type lifecycle struct {
	modules.Base
	starts, stops int
}

func (l *lifecycle) Update(context.Context, modules.State) error { return nil }
func (l *lifecycle) Start() error                                { l.starts++; return nil }
func (l *lifecycle) Stop() error                                 { l.stops++; return nil }

var _ = Describe("Balancing shallow water states", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	DescribeTable("a state at its base point converges in one pass",
		func(ranks int) {
			results := make([]*balance.Result, ranks)
			err := domain.Run(ctx, ranks, func(ctx context.Context, comm domain.Communicator) error {
				s, err := newJet(ctx, comm, 0)
				if err != nil {
					return err
				}
				cfg := balance.DefaultConfig()
				cfg.RampType = "lin"
				cfg.MaxIt = 3
				cfg.StopCriterion = 1e-9
				cfg.ReturnDetails = true
				ob, err := balance.New(cfg, s.proj, s.factory, balance.WithLogger(quietLog()))
				if err != nil {
					return err
				}
				res, err := ob.Balance(ctx, s.z)
				if err != nil {
					return err
				}
				d, err := res.State.NormOfDiff(ctx, s.z)
				if err != nil {
					return err
				}
				if d > 1e-10 {
					return fmt.Errorf("balanced jet moved by %v", d)
				}
				results[comm.Rank()] = res
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			for _, res := range results {
				Expect(res.Converged).To(BeTrue())
				Expect(res.Stop).To(Equal(balance.StopConverged))
				Expect(res.Passes).To(Equal(1))
				Expect(res.Iterations).To(HaveLen(1))
				Expect(res.Error).To(BeNumerically("<", 1e-12))
			}
		},
		Entry("on one rank", 1),
		Entry("on four ranks", 4),
	)

	It("balances a nonlinear jet without blowing up", func() {
		s, err := newJet(ctx, domain.Serial(), 0.5)
		Expect(err).NotTo(HaveOccurred())
		cfg := balance.DefaultConfig()
		cfg.RampPeriod = 0.5
		cfg.MaxIt = 2
		ob, err := balance.New(cfg, s.proj, s.factory, balance.WithLogger(quietLog()))
		Expect(err).NotTo(HaveOccurred())

		res, err := ob.Balance(ctx, s.z)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State.HasNaN()).To(BeFalse())
		Expect(res.Passes).To(BeNumerically(">=", 1))
		Expect(res.Iterations).To(BeEmpty())
		Expect(ob.RampSteps()).To(Equal(25))
	})

	Describe("DiagnoseImbalance", func() {
		It("finds no imbalance in a linear geostrophic state", func() {
			s, err := newJet(ctx, domain.Serial(), 0)
			Expect(err).NotTo(HaveOccurred())
			out, err := balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{
				Period:       0.5,
				Initial:      s.proj,
				Model:        s.factory,
				StoreDetails: true,
			}, s.z)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Value).To(BeNumerically("<", 1e-10))
			Expect(out.Start).NotTo(BeNil())
			Expect(out.EndBalanced).NotTo(BeNil())
			Expect(out.InitialDetails).To(BeNil())
		})

		It("measures the imbalance the nonlinear terms create", func() {
			s, err := newJet(ctx, domain.Serial(), 0.5)
			Expect(err).NotTo(HaveOccurred())
			out, err := balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{
				Period:  0.5,
				Initial: s.proj,
				Model:   s.factory,
			}, s.z)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Value).To(BeNumerically(">", 1e-8))
			Expect(out.Start).To(BeNil())
		})

		It("keeps the balancing records of an optimal balance projector", func() {
			s, err := newJet(ctx, domain.Serial(), 0)
			Expect(err).NotTo(HaveOccurred())
			cfg := balance.DefaultConfig()
			cfg.RampPeriod = 0.25
			ob, err := balance.New(cfg, s.proj, s.factory, balance.WithLogger(quietLog()))
			Expect(err).NotTo(HaveOccurred())

			out, err := balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{
				Period:  0.25,
				Initial: ob,
				Final:   s.proj,
				Model:   s.factory,
			}, s.z)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.InitialDetails).NotTo(BeNil())
			Expect(out.InitialDetails.Converged).To(BeTrue())
			Expect(out.FinalDetails).To(BeNil())
			Expect(out.Value).To(BeNumerically("<", 1e-10))
		})

		It("starts and stops the model it runs", func() {
			s, err := newJet(ctx, domain.Serial(), 0)
			Expect(err).NotTo(HaveOccurred())
			var watched []*lifecycle
			factory := func(z *field.State) (*model.Model, error) {
				l := &lifecycle{Base: modules.Base{ModuleName: "lifecycle"}}
				watched = append(watched, l)
				p := sw.NewPipeline(s.grid, s.params)
				p.Add(l)
				err := p.Setup(&modules.Settings{Decomposition: s.dec, Operators: s.grid.Operators(s.dec), Log: quietLog()})
				if err != nil {
					return nil, err
				}
				ab, err := integrators.NewAdamBashforth(3)
				if err != nil {
					return nil, err
				}
				return model.New(model.Config{Dt: 0.02, Log: quietLog()}, p, ab, z)
			}

			_, err = balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{
				Period:  0.1,
				Initial: s.proj,
				Model:   factory,
			}, s.z)
			Expect(err).NotTo(HaveOccurred())
			Expect(watched).To(HaveLen(1))
			Expect(watched[0].starts).To(Equal(1))
			Expect(watched[0].stops).To(Equal(1))
		})

		It("validates its configuration", func() {
			s, err := newJet(ctx, domain.Serial(), 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{Initial: s.proj, Model: s.factory}, s.z)
			Expect(err).To(HaveOccurred())
			_, err = balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{Period: 1, Model: s.factory}, s.z)
			Expect(err).To(HaveOccurred())
		})
	})
})
