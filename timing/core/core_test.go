package core_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpipe/timing/cache"
	"github.com/sarchlab/rvpipe/timing/config"
	"github.com/sarchlab/rvpipe/timing/core"
	"github.com/sarchlab/rvpipe/timing/pipeline"
)

var sumLoop = []string{
	"addi x1, x0, 10",
	"addi x2, x0, 0",
	"addi x5, x0, 1",
	"loop:",
	"add x2, x2, x1",
	"sub x1, x1, x5",
	"bne x1, x0, -2",
	"nop",
}

var loadUse = []string{
	"addi x1, x0, 0",
	"lw x2, 0(x1)",
	"add x3, x2, x2",
	"lw x4, 1(x1)",
	"add x5, x4, x4",
	"nop",
}

var _ = Describe("Core", func() {
	It("should run a program to completion with the default configuration", func() {
		c, err := core.Load(sumLoop, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Diagnostics()).To(BeEmpty())
		Expect(c.IsFinished()).To(BeFalse())

		Expect(c.Run()).To(Equal(pipeline.StatusFinished))
		Expect(c.IsFinished()).To(BeTrue())
		Expect(c.Registers()[2]).To(Equal(int32(55)))
		Expect(c.Stats().Flushes).To(Equal(uint64(2)))
		Expect(c.BranchStats().Correct).To(Equal(uint64(8)))

		mismatches, err := c.Verify()
		Expect(err).NotTo(HaveOccurred())
		Expect(mismatches).To(BeEmpty())
	})

	It("should use the default configuration when none is given", func() {
		c, err := core.Load(sumLoop, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Config()).To(Equal(config.DefaultConfig()))
	})

	It("should keep its own copy of the configuration", func() {
		cfg := config.DefaultConfig()
		c, err := core.Load(sumLoop, cfg)
		Expect(err).NotTo(HaveOccurred())

		cfg.MaxCycles = 1
		Expect(c.Config().MaxCycles).To(Equal(config.DefaultMaxCycles))
	})

	It("should reject an invalid configuration", func() {
		cfg := config.DefaultConfig()
		cfg.Hierarchy.L1D.LineWords = 6

		_, err := core.Load(sumLoop, cfg)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, cache.ErrInvalidGeometry)).To(BeTrue())
	})

	It("should report undecodable lines and run them as nops", func() {
		c, err := core.Load([]string{
			"addi x1, x0, 4",
			"mul x2, x1, x1",
			"addi x3, x1, 1",
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		diags := c.Diagnostics()
		Expect(diags).To(HaveLen(1))
		Expect(diags[0].PC).To(Equal(1))
		Expect(c.Program()[1].IsNop()).To(BeTrue())

		c.Run()
		Expect(c.Registers()[2]).To(BeZero())
		Expect(c.Registers()[3]).To(Equal(int32(5)))
	})

	It("should stop at the cycle budget", func() {
		cfg := config.DefaultConfig()
		cfg.MaxCycles = 300

		c, err := core.Load([]string{
			"addi x1, x0, 0",
			"addi x2, x0, 1",
			"beq x1, x2, 2",
			"addi x3, x0, 5",
			"bne x1, x2, -3",
			"nop",
		}, cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Run()).To(Equal(pipeline.StatusIncomplete))
		Expect(c.Stats().Cycles).To(Equal(uint64(300)))
		Expect(c.IsFinished()).To(BeFalse())

		_, err = c.Verify()
		Expect(err).To(MatchError(core.ErrNotFinished))
	})

	Describe("data memory", func() {
		It("should load data before the first cycle", func() {
			c, err := core.Load(loadUse, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.LoadData(0, []int32{21, 4})).To(Succeed())

			c.Run()
			Expect(c.Registers()[3]).To(Equal(int32(42)))
			Expect(c.Registers()[5]).To(Equal(int32(8)))
			Expect(c.Stats().StallsData).To(Equal(uint64(2)))

			mismatches, err := c.Verify()
			Expect(err).NotTo(HaveOccurred())
			Expect(mismatches).To(BeEmpty())
		})

		It("should refuse data once the core started", func() {
			c, err := core.Load(loadUse, nil)
			Expect(err).NotTo(HaveOccurred())

			c.Tick()
			Expect(c.LoadData(0, []int32{1})).To(MatchError(core.ErrStarted))
		})

		It("should refuse data in the instruction address range", func() {
			c, err := core.Load(loadUse, nil)
			Expect(err).NotTo(HaveOccurred())

			err = c.LoadData(cache.DefaultTextBase-1, []int32{1, 2})
			Expect(err).To(MatchError(cache.ErrTextOverlap))
			Expect(c.ReadMemory(cache.DefaultTextBase - 1)).To(BeZero())
		})

		It("should read stored values through the caches", func() {
			c, err := core.Load([]string{
				"addi x1, x0, 0",
				"addi x2, x0, 5",
				"sw x2, 0(x1)",
				"sw x2, 1(x1)",
				"sw x2, 2(x1)",
				"sw x2, 3(x1)",
				"nop",
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			c.Run()
			for addr := uint32(0); addr < 4; addr++ {
				Expect(c.ReadMemory(addr)).To(Equal(int32(5)))
			}
			Expect(c.ReadMemory(4)).To(BeZero())
		})
	})

	Describe("statistics", func() {
		It("should expose every cache level and memory", func() {
			cfg := config.DefaultConfig()
			l2 := cache.DefaultL2Config()
			cfg.Hierarchy.L2 = &l2

			c, err := core.Load(loadUse, cfg)
			Expect(err).NotTo(HaveOccurred())
			c.Run()

			var names []string
			for _, l := range c.CacheStats() {
				names = append(names, l.Name)
			}
			Expect(names).To(Equal([]string{"L1I", "L1D", "L2"}))
			Expect(c.MemoryStats().LineReads).To(BeNumerically(">", 0))
			Expect(c.Stats().CacheStallEvents).To(BeNumerically(">=", 2))
		})
	})

	Describe("Reset", func() {
		It("should replay the same run", func() {
			c, err := core.Load(loadUse, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.LoadData(0, []int32{21, 4})).To(Succeed())

			c.Run()
			first := c.Stats()

			Expect(c.Reset()).To(Succeed())
			Expect(c.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(c.Registers()[3]).To(BeZero())
			Expect(c.PC()).To(BeZero())

			c.Run()
			Expect(c.Stats()).To(Equal(first))
			Expect(c.Registers()[3]).To(Equal(int32(42)))
		})
	})

	Describe("visualization queries", func() {
		It("should expose the latches after each cycle", func() {
			c, err := core.Load(sumLoop, nil)
			Expect(err).NotTo(HaveOccurred())

			c.Tick()
			Expect(c.CacheStall()).To(BeTrue())
			Expect(c.Latches().Empty()).To(BeTrue())
			Expect(c.LastCommitted().IsNop()).To(BeTrue())

			for !c.Latches().IFID.IsValid() {
				c.Tick()
			}
			Expect(c.Latches().IFID.PC).To(BeZero())
			Expect(c.PC()).To(Equal(1))
		})

		It("should dump the current state", func() {
			c, err := core.Load(sumLoop, nil)
			Expect(err).NotTo(HaveOccurred())
			c.Run()

			var buf bytes.Buffer
			c.DumpState(&buf)

			out := buf.String()
			Expect(out).To(ContainSubstring("status finished"))
			Expect(out).To(ContainSubstring("IFID"))
			Expect(out).To(ContainSubstring("x02"))
		})
	})

	It("should format mismatches", func() {
		m := core.Mismatch{Reg: 3, Pipeline: 1, Reference: 2}
		Expect(m.String()).To(Equal("x3: pipeline=1 reference=2"))
	})
})
