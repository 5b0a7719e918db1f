package balance_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/flowsim/internal/balance"
	"github.com/san-kum/flowsim/internal/dynamo"
)

var _ = Describe("Ramp functions", func() {
	DescribeTable("blend from zero to one",
		func(name string) {
			f, err := balance.RampByName(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(f(0)).To(BeNumerically("~", 0, 1e-15))
			Expect(f(1)).To(BeNumerically("~", 1, 1e-15))
			Expect(f(0.5)).To(BeNumerically("~", 0.5, 1e-15))

			prev := f(0)
			for i := 1; i <= 100; i++ {
				v := f(float64(i) / 100)
				Expect(v).To(BeNumerically(">=", prev))
				prev = v
			}
		},
		Entry("exponential", "exp"),
		Entry("cubic", "pow"),
		Entry("cosine", "cos"),
		Entry("linear", "lin"),
	)

	It("starts the smooth profiles with a flat slope", func() {
		for _, f := range []balance.RampFunc{balance.ExpRamp, balance.PowRamp, balance.CosRamp} {
			Expect(f(1e-3) / 1e-3).To(BeNumerically("<", 1e-2))
		}
	})

	It("rejects unknown profiles", func() {
		_, err := balance.RampByName("sqrt")
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
		Expect(balance.RampNames()).To(Equal([]string{"cos", "exp", "lin", "pow"}))
	})
})
