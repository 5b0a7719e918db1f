package balance_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/balance"
	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/integrators"
	"github.com/san-kum/flowsim/internal/model"
	"github.com/san-kum/flowsim/internal/modules"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

// recorder leaves the tendency at zero and remembers the control factors
// it was stepped with.
type recorder struct {
	modules.Base
	controls []float64
}

func (r *recorder) Update(_ context.Context, st modules.State) error {
	r.controls = append(r.controls, st.Control())
	return nil
}

// staticFactory builds models whose state never changes.
func staticFactory(dt float64, recs *[]*recorder) balance.ModelFactory {
	return func(z *field.State) (*model.Model, error) {
		rec := &recorder{Base: modules.Base{ModuleName: "recorder"}}
		*recs = append(*recs, rec)
		p := modules.NewPipeline(rec)
		if err := p.Setup(&modules.Settings{Decomposition: z.Decomposition(), Log: quietLog()}); err != nil {
			return nil, err
		}
		ab, err := integrators.NewAdamBashforth(1)
		if err != nil {
			return nil, err
		}
		return model.New(model.Config{Dt: dt, Log: quietLog()}, p, ab, z)
	}
}

func constantState(v float64) *field.State {
	dec, err := domain.New(domain.Serial(), []int{4}, nil, 1)
	Expect(err).NotTo(HaveOccurred())
	q := field.NewArray(dec, "q", field.Center)
	q.Fill(v)
	z, err := field.NewState(q)
	Expect(err).NotTo(HaveOccurred())
	return z
}

// scripted returns its input for the first call and every odd call and
// subtracts the next shift on every even call.
func scripted(shifts ...float64) (balance.Projector, *int) {
	calls := 0
	return balance.ProjectorFunc(func(_ context.Context, z *field.State) (*field.State, error) {
		out := z.Clone()
		k := calls
		calls++
		if k > 0 && k%2 == 0 {
			d := out.Field("q").Data()
			for i := range d {
				d[i] -= shifts[k/2-1]
			}
		}
		return out, nil
	}), &calls
}

func interiorValues(z *field.State) []float64 {
	var out []float64
	q := z.Field("q")
	q.Each(func(off int, _ []int) { out = append(out, q.Data()[off]) })
	return out
}

var _ = Describe("OptimalBalance", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("configuration", func() {
		It("accepts the defaults", func() {
			Expect(balance.DefaultConfig().Validate()).To(Succeed())
		})

		DescribeTable("rejects invalid settings",
			func(mutate func(*balance.Config)) {
				cfg := balance.DefaultConfig()
				mutate(&cfg)
				Expect(cfg.Validate()).To(MatchError(dynamo.ErrConfiguration))
			},
			Entry("no iterations", func(c *balance.Config) { c.MaxIt = 0 }),
			Entry("zero ramp period", func(c *balance.Config) { c.RampPeriod = 0 }),
			Entry("unknown ramp", func(c *balance.Config) { c.RampType = "step" }),
			Entry("negative stop criterion", func(c *balance.Config) { c.StopCriterion = -1 }),
		)

		It("needs a projector and a model factory", func() {
			var recs []*recorder
			_, err := balance.New(balance.DefaultConfig(), nil, staticFactory(0.1, &recs))
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
			_, err = balance.New(balance.DefaultConfig(), balance.Identity, nil)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})

		It("fails when the ramp is shorter than one step", func() {
			var recs []*recorder
			cfg := balance.DefaultConfig()
			cfg.RampPeriod = 0.05
			ob, err := balance.New(cfg, balance.Identity, staticFactory(0.1, &recs), balance.WithLogger(quietLog()))
			Expect(err).NotTo(HaveOccurred())
			_, err = ob.Balance(ctx, constantState(1))
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})
	})

	Describe("ramping", func() {
		var (
			recs []*recorder
			ob   *balance.OptimalBalance
		)

		BeforeEach(func() {
			recs = nil
			cfg := balance.DefaultConfig()
			cfg.RampType = "lin"
			cfg.RampPeriod = 1
			var err error
			ob, err = balance.New(cfg, balance.Identity, staticFactory(0.25, &recs), balance.WithLogger(quietLog()))
			Expect(err).NotTo(HaveOccurred())
		})

		It("drives the backward model down and the forward model up", func() {
			res, err := ob.Balance(ctx, constantState(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())
			Expect(res.Passes).To(Equal(1))
			Expect(ob.RampSteps()).To(Equal(4))

			Expect(recs).To(HaveLen(2))
			forward, backward := recs[0], recs[1]
			Expect(backward.controls).To(Equal([]float64{1, 0.75, 0.5, 0.25}))
			Expect(forward.controls).To(Equal([]float64{0, 0.25, 0.5, 0.75}))

			fw, bw := ob.Models()
			Expect(fw.Dt()).To(Equal(0.25))
			Expect(bw.Dt()).To(Equal(-0.25))
		})

		It("reuses its models across calls", func() {
			for range 3 {
				z, err := ob.Project(ctx, constantState(1))
				Expect(err).NotTo(HaveOccurred())
				Expect(interiorValues(z)).To(HaveEach(1.0))
			}
			Expect(recs).To(HaveLen(2))
			fw, _ := ob.Models()
			Expect(fw.State().It).To(Equal(4))
		})
	})

	Describe("stopping", func() {
		newBalance := func(p balance.Projector) *balance.OptimalBalance {
			var recs []*recorder
			cfg := balance.DefaultConfig()
			cfg.RampPeriod = 0.2
			cfg.UpdateBasePoint = false
			cfg.ReturnDetails = true
			ob, err := balance.New(cfg, p, staticFactory(0.1, &recs), balance.WithLogger(quietLog()))
			Expect(err).NotTo(HaveOccurred())
			return ob
		}

		It("keeps the previous candidate when the error grows", func() {
			p, calls := scripted(0.1, 0.5, 0.7)
			res, err := newBalance(p).Balance(ctx, constantState(1))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Stop).To(Equal(balance.StopDiverging))
			Expect(res.Err).To(MatchError(dynamo.ErrDiverging))
			Expect(res.Converged).To(BeFalse())
			Expect(res.Passes).To(Equal(2))
			Expect(res.Iterations).To(HaveLen(2))
			Expect(res.Iterations[1].Error).To(BeNumerically(">", res.Iterations[0].Error))
			Expect(res.Iterations[0].Error).To(BeNumerically("~", 0.2/2.1, 1e-12))
			for _, v := range interiorValues(res.State) {
				Expect(v).To(BeNumerically("~", 1.1, 1e-12))
			}
			Expect(*calls).To(Equal(5))
		})

		It("returns the last candidate after max_it passes", func() {
			p, _ := scripted(0.1, 0.15, 0.17)
			res, err := newBalance(p).Balance(ctx, constantState(1))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Stop).To(Equal(balance.StopMaxIterations))
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Passes).To(Equal(3))
			Expect(res.Iterations).To(HaveLen(3))
			for _, v := range interiorValues(res.State) {
				Expect(v).To(BeNumerically("~", 1.17, 1e-12))
			}
		})

		It("stops on a cancelled context", func() {
			p, _ := scripted(0.1, 0.15, 0.17)
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := newBalance(p).Balance(cctx, constantState(1))
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
