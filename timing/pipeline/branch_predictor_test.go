package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpipe/timing/pipeline"
)

var _ = Describe("BranchPredictor", func() {
	var bp *pipeline.BranchPredictor

	Describe("one-bit", func() {
		BeforeEach(func() {
			bp = pipeline.NewBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorOneBit,
				Size: 8,
			})
		})

		It("should initially predict not-taken", func() {
			for pc := 0; pc < 8; pc++ {
				Expect(bp.Predict(pc)).To(BeFalse())
			}
		})

		It("should remember the last outcome", func() {
			bp.Update(3, true)
			Expect(bp.Predict(3)).To(BeTrue())

			bp.Update(3, false)
			Expect(bp.Predict(3)).To(BeFalse())
		})

		It("should share entries between aliasing PCs", func() {
			bp.Update(1, true)
			Expect(bp.Predict(9)).To(BeTrue())
			Expect(bp.Predict(2)).To(BeFalse())
		})

		It("should track accuracy against the table", func() {
			bp.Update(0, true)  // predicted not-taken
			bp.Update(0, true)  // predicted taken
			bp.Update(0, true)  // predicted taken
			bp.Update(0, false) // predicted taken

			stats := bp.Stats()
			Expect(stats.Predictions).To(Equal(uint64(4)))
			Expect(stats.Correct).To(Equal(uint64(2)))
			Expect(stats.Mispredictions).To(Equal(uint64(2)))
			Expect(stats.Accuracy()).To(BeNumerically("~", 50.0))
		})

		It("should forget everything on reset", func() {
			bp.Update(5, true)
			bp.Reset()

			Expect(bp.Predict(5)).To(BeFalse())
			Expect(bp.Stats()).To(Equal(pipeline.BranchPredictorStats{}))
		})
	})

	Describe("static", func() {
		BeforeEach(func() {
			bp = pipeline.NewBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorStatic,
				Size: 8,
			})
		})

		It("should always predict not-taken", func() {
			bp.Update(2, true)
			bp.Update(2, true)

			Expect(bp.Predict(2)).To(BeFalse())
			Expect(bp.Stats().Mispredictions).To(Equal(uint64(2)))
		})
	})

	Describe("configuration", func() {
		It("should default to a 64-entry one-bit table", func() {
			config := pipeline.DefaultBranchPredictorConfig()
			Expect(config.Kind).To(Equal(pipeline.PredictorOneBit))
			Expect(config.Size).To(Equal(64))
			Expect(config.Validate()).To(Succeed())
		})

		DescribeTable("should reject invalid settings",
			func(config pipeline.BranchPredictorConfig) {
				Expect(config.Validate()).To(HaveOccurred())
			},
			Entry("size not a power of two", pipeline.BranchPredictorConfig{Kind: pipeline.PredictorOneBit, Size: 48}),
			Entry("zero size", pipeline.BranchPredictorConfig{Kind: pipeline.PredictorOneBit}),
			Entry("unknown kind", pipeline.BranchPredictorConfig{Kind: "twobit", Size: 64}),
		)

		It("should treat an empty kind as one-bit", func() {
			bp = pipeline.NewBranchPredictor(pipeline.BranchPredictorConfig{Size: 4})
			Expect(bp.Kind()).To(Equal(pipeline.PredictorOneBit))
		})
	})
})
