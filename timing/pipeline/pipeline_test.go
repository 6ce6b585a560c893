package pipeline_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/timing/cache"
	"github.com/sarchlab/rvpipe/timing/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
	})

	// ideal builds a pipeline over a hierarchy that never stalls.
	ideal := func(lines []string, opts ...pipeline.PipelineOption) *pipeline.Pipeline {
		opts = append([]pipeline.PipelineOption{
			pipeline.WithHierarchy(newHierarchy(zeroLatency(), memory)),
		}, opts...)
		return pipeline.NewPipeline(decodeProgram(lines...), regFile, memory, opts...)
	}

	It("should be finished at construction for an empty program", func() {
		p := pipeline.NewPipeline(nil, regFile, memory)
		Expect(p.Finished()).To(BeTrue())
		Expect(p.Run()).To(Equal(pipeline.StatusFinished))
		Expect(p.Stats().Cycles).To(BeZero())
	})

	It("should move an instruction one latch per cycle", func() {
		p := ideal([]string{"addi x1, x0, 5", "addi x2, x0, 6"})

		p.Tick()
		Expect(p.GetIFID().PC).To(Equal(0))
		Expect(p.PC()).To(Equal(1))

		p.Tick()
		Expect(p.GetIDEX().PC).To(Equal(0))
		Expect(p.GetIFID().PC).To(Equal(1))

		p.Tick()
		Expect(p.GetEXMEM().PC).To(Equal(0))
		Expect(p.GetEXMEM().ALUResult).To(Equal(int32(5)))
		Expect(p.GetIFID().IsValid()).To(BeFalse())

		p.Tick()
		Expect(p.GetMEMWB().PC).To(Equal(0))
		Expect(regFile.ReadReg(1)).To(BeZero())

		p.Tick()
		Expect(p.LastCommitted().Rd).To(Equal(uint8(1)))
		Expect(regFile.ReadReg(1)).To(Equal(int32(5)))

		p.Tick()
		Expect(p.Finished()).To(BeTrue())
		Expect(regFile.ReadReg(2)).To(Equal(int32(6)))
	})

	It("should report validity on latch copies", func() {
		p := ideal([]string{
			"addi x1, x0, 1",
			"addi x2, x0, 2",
			"addi x3, x0, 3",
			"addi x4, x0, 4",
		})

		for i := 0; i < 4; i++ {
			p.Tick()
		}
		Expect(p.GetIFID().IsValid()).To(BeTrue())
		Expect(p.GetIDEX().IsValid()).To(BeTrue())
		Expect(p.GetEXMEM().IsValid()).To(BeTrue())
		Expect(p.GetMEMWB().IsValid()).To(BeTrue())
		Expect(p.Latches().MEMWB.PC).To(Equal(0))

		Expect(p.Run()).To(Equal(pipeline.StatusFinished))
		latches := p.Latches()
		Expect(latches.IFID.IsValid()).To(BeFalse())
		Expect(latches.IDEX.IsValid()).To(BeFalse())
		Expect(latches.EXMEM.IsValid()).To(BeFalse())
		Expect(latches.MEMWB.IsValid()).To(BeFalse())
		Expect(latches.Empty()).To(BeTrue())
	})

	It("should reach a CPI near one without stalls", func() {
		var lines []string
		for i := 1; i <= 20; i++ {
			lines = append(lines, fmt.Sprintf("addi x%d, x0, %d", i, i))
		}
		p := ideal(lines)

		Expect(p.Run()).To(Equal(pipeline.StatusFinished))

		stats := p.Stats()
		Expect(stats.Cycles).To(Equal(uint64(24)))
		Expect(stats.Instructions).To(Equal(uint64(20)))
		Expect(stats.CPI()).To(BeNumerically("<", 1.25))
		Expect(regFile.ReadReg(20)).To(Equal(int32(20)))
	})

	It("should forward back-to-back results", func() {
		p := ideal([]string{
			"addi x1, x0, 3",
			"add x2, x1, x1",
			"add x3, x2, x1",
			"sub x4, x3, x2",
		})
		p.Run()

		Expect(regFile.ReadReg(2)).To(Equal(int32(6)))
		Expect(regFile.ReadReg(3)).To(Equal(int32(9)))
		Expect(regFile.ReadReg(4)).To(Equal(int32(3)))
		Expect(p.Stats().StallsData).To(BeZero())
	})

	Describe("load-use hazards", func() {
		lines := []string{"lw x1, 0(x0)", "add x3, x1, x1"}

		It("should insert one bubble", func() {
			memory.Write(0, 21)
			p := ideal(lines)

			p.Tick()
			p.Tick()
			p.Tick()
			Expect(p.InjectedBubble()).To(BeTrue())
			Expect(p.GetIDEX().IsValid()).To(BeFalse())
			Expect(p.GetIFID().PC).To(Equal(1))

			p.Run()
			Expect(p.Stats().StallsData).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(3)).To(Equal(int32(42)))
		})

		It("should insert one bubble without the EX/MEM check", func() {
			memory.Write(0, 21)
			p := ideal(lines, pipeline.WithLoadUseCheckMEM(false))
			p.Run()

			Expect(p.Stats().StallsData).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(3)).To(Equal(int32(42)))
		})

		It("should not stall an independent instruction", func() {
			p := ideal([]string{"lw x1, 0(x0)", "addi x2, x0, 1"})
			p.Run()

			Expect(p.Stats().StallsData).To(BeZero())
		})
	})

	Describe("control flow", func() {
		It("should not flush a correctly predicted not-taken branch", func() {
			p := ideal([]string{
				"addi x1, x0, 1",
				"beq x1, x0, 2",
				"addi x3, x0, 5",
			})
			p.Run()

			stats := p.Stats()
			Expect(stats.Flushes).To(BeZero())
			Expect(stats.BranchPredictions).To(Equal(uint64(1)))
			Expect(stats.BranchCorrect).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(3)).To(Equal(int32(5)))
		})

		It("should flush the wrong path of a mispredicted branch", func() {
			p := ideal([]string{
				"beq x0, x0, 2",
				"addi x3, x0, 5",
				"addi x4, x0, 6",
				"nop",
			})

			p.Tick()
			p.Tick()
			p.Tick()
			Expect(p.FlushedPCs()).To(Equal([]int{1}))
			Expect(p.PC()).To(Equal(2))

			p.Run()
			stats := p.Stats()
			Expect(stats.Flushes).To(Equal(uint64(1)))
			Expect(stats.BranchCorrect).To(BeZero())
			Expect(stats.Instructions).To(Equal(uint64(2)))
			Expect(regFile.ReadReg(3)).To(BeZero())
			Expect(regFile.ReadReg(4)).To(Equal(int32(6)))
		})

		It("should learn a loop branch", func() {
			p := ideal([]string{
				"addi x1, x0, 10",
				"addi x2, x0, 0",
				"add x2, x2, x1",
				"addi x1, x1, -1",
				"bne x1, x0, -2",
			})
			p.Run()

			stats := p.Stats()
			Expect(regFile.ReadReg(2)).To(Equal(int32(55)))
			Expect(stats.BranchPredictions).To(Equal(uint64(10)))
			Expect(stats.BranchCorrect).To(Equal(uint64(8)))
			Expect(stats.Flushes).To(Equal(uint64(2)))
			Expect(p.BranchPredictor().Stats().Correct).To(Equal(uint64(8)))
		})

		It("should mispredict every taken branch with the static predictor", func() {
			p := ideal([]string{
				"addi x1, x0, 10",
				"addi x2, x0, 0",
				"add x2, x2, x1",
				"addi x1, x1, -1",
				"bne x1, x0, -2",
			}, pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorStatic,
				Size: 64,
			}))
			p.Run()

			stats := p.Stats()
			Expect(regFile.ReadReg(2)).To(Equal(int32(55)))
			Expect(stats.BranchCorrect).To(Equal(uint64(1)))
			Expect(stats.Flushes).To(Equal(uint64(9)))
		})

		It("should always flush after jal", func() {
			p := ideal([]string{
				"jal x1, 2",
				"addi x2, x0, 9",
				"addi x3, x0, 4",
			})

			p.Tick()
			p.Tick()
			p.Tick()
			Expect(p.FlushedPCs()).To(Equal([]int{1}))

			p.Run()
			Expect(p.Stats().Flushes).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
			Expect(regFile.ReadReg(2)).To(BeZero())
			Expect(regFile.ReadReg(3)).To(Equal(int32(4)))
		})

		It("should jump through a forwarded register with jalr", func() {
			p := ideal([]string{
				"addi x1, x0, 4",
				"jalr x5, 0(x1)",
				"addi x2, x0, 9",
				"addi x3, x0, 9",
				"addi x4, x0, 4",
			})
			p.Run()

			Expect(p.Stats().Flushes).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(5)).To(Equal(int32(2)))
			Expect(regFile.ReadReg(2)).To(BeZero())
			Expect(regFile.ReadReg(3)).To(BeZero())
			Expect(regFile.ReadReg(4)).To(Equal(int32(4)))
		})
	})

	It("should keep x0 at zero", func() {
		p := ideal([]string{
			"addi x0, x0, 5",
			"add x1, x0, x0",
		})
		p.Run()

		Expect(regFile.ReadReg(0)).To(BeZero())
		Expect(regFile.ReadReg(1)).To(BeZero())
	})

	It("should store and reload through the data cache", func() {
		p := pipeline.NewPipeline(decodeProgram(
			"addi x1, x0, 7",
			"sw x1, 4(x0)",
			"lw x3, 4(x0)",
		), regFile, memory)
		p.Run()

		Expect(regFile.ReadReg(3)).To(Equal(int32(7)))
		Expect(memory.Read(4)).To(BeZero())

		p.Hierarchy().Flush()
		Expect(memory.Read(4)).To(Equal(int32(7)))
	})

	Describe("cache stalls", func() {
		It("should freeze for the full miss latency", func() {
			p := pipeline.NewPipeline(decodeProgram("addi x1, x0, 1"), regFile, memory)

			p.Tick()
			Expect(p.CacheStall()).To(BeTrue())
			Expect(p.StallCycles()).To(Equal(uint64(11)))
			Expect(p.GetIFID().IsValid()).To(BeFalse())

			p.Run()
			stats := p.Stats()
			Expect(stats.Cycles).To(Equal(uint64(17)))
			Expect(stats.StallsCache).To(Equal(uint64(11)))
			Expect(stats.CacheStallEvents).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
		})

		It("should keep draining writeback while frozen", func() {
			p := pipeline.NewPipeline(decodeProgram(
				"addi x1, x0, 1",
				"addi x2, x0, 2",
				"addi x3, x0, 3",
				"addi x4, x0, 4",
				"addi x5, x0, 5",
			), regFile, memory)

			// pc 4 starts the second instruction line.
			for p.PC() < 4 {
				p.Tick()
			}
			p.Tick()
			Expect(p.CacheStall()).To(BeTrue())
			Expect(p.GetIFID().IsValid()).To(BeFalse())
			Expect(p.GetIDEX().PC).To(Equal(3))

			p.Tick()
			p.Tick()
			Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
			Expect(regFile.ReadReg(2)).To(Equal(int32(2)))

			p.Run()
			Expect(p.Stats().CacheStallEvents).To(Equal(uint64(2)))
			Expect(regFile.ReadReg(5)).To(Equal(int32(5)))
			Expect(p.Stats().Instructions).To(Equal(uint64(5)))
		})
	})

	It("should stop at the cycle budget", func() {
		p := pipeline.NewPipeline(decodeProgram(
			"addi x1, x0, 1",
			"jal x0, -1",
		), regFile, memory, pipeline.WithMaxCycles(50))

		Expect(p.Run()).To(Equal(pipeline.StatusIncomplete))
		Expect(p.Stats().Cycles).To(Equal(uint64(50)))

		p.Tick()
		Expect(p.Stats().Cycles).To(Equal(uint64(50)))
		Expect(p.RunCycles(10)).To(BeFalse())
	})

	It("should report whether it is still running", func() {
		p := ideal([]string{"addi x1, x0, 1", "addi x2, x0, 2"})

		Expect(p.RunCycles(2)).To(BeTrue())
		Expect(p.Status()).To(Equal(pipeline.StatusRunning))
		Expect(p.RunCycles(10)).To(BeFalse())
		Expect(p.Stats().Cycles).To(Equal(uint64(6)))
	})

	Describe("agreement with the functional emulator", func() {
		programs := map[string][]string{
			"sum loop": {
				"addi x1, x0, 10",
				"addi x2, x0, 0",
				"add x2, x2, x1",
				"addi x1, x1, -1",
				"bne x1, x0, -2",
				"sw x2, 0(x0)",
				"lw x3, 0(x0)",
			},
			"load chain": {
				"addi x1, x0, 3",
				"sw x1, 0(x0)",
				"lw x2, 0(x0)",
				"add x3, x2, x2",
				"sw x3, 1(x0)",
				"lw x4, 1(x0)",
				"sub x5, x4, x1",
			},
			"call and return": {
				"addi x10, x0, 6",
				"jal x1, 3",
				"addi x11, x10, 1",
				"jal x0, 3",
				"add x10, x10, x10",
				"jalr x0, 0(x1)",
				"nop",
			},
			"strided stores": {
				"addi x1, x0, 8",
				"addi x2, x0, 0",
				"sw x1, 0(x2)",
				"addi x2, x2, 16",
				"addi x1, x1, -1",
				"bne x1, x0, -3",
				"addi x2, x0, 0",
				"lw x3, 0(x2)",
				"lw x4, 16(x2)",
				"lw x5, 112(x2)",
				"add x6, x3, x4",
				"add x6, x6, x5",
			},
			"logic": {
				"addi x1, x0, -5",
				"slt x2, x1, x0",
				"xor x3, x1, x2",
				"and x4, x3, x1",
				"or x5, x4, x2",
			},
		}

		threeLevels := func() cache.HierarchyConfig {
			hc := cache.DefaultHierarchyConfig()
			l2 := cache.DefaultL2Config()
			l3 := cache.DefaultL3Config()
			hc.L2, hc.L3 = &l2, &l3
			hc.MemoryLatency = 40
			return hc
		}

		tiny := func() cache.HierarchyConfig {
			hc := cache.DefaultHierarchyConfig()
			hc.L1D = cache.Config{
				SizeWords:      16,
				LineWords:      4,
				Associativity:  2,
				HitLatency:     1,
				MissPenalty:    3,
				WritePolicy:    cache.WriteThrough,
				AllocatePolicy: cache.NoAllocate,
			}
			hc.MemoryLatency = 2
			return hc
		}

		hierarchies := map[string]func() cache.HierarchyConfig{
			"default":       cache.DefaultHierarchyConfig,
			"zero latency":  zeroLatency,
			"three levels":  threeLevels,
			"tiny no-alloc": tiny,
		}

		for hName, hc := range hierarchies {
			for pName, lines := range programs {
				It(fmt.Sprintf("should match on %s with %s caches", pName, hName), func() {
					program := decodeProgram(lines...)

					ref := emu.NewEmulator(program, emu.WithMaxInstructions(10000))
					Expect(ref.Run()).To(Succeed())

					p := pipeline.NewPipeline(program, regFile, memory,
						pipeline.WithHierarchy(newHierarchy(hc(), memory)),
						pipeline.WithMaxCycles(100000))
					Expect(p.Run()).To(Equal(pipeline.StatusFinished))
					p.Hierarchy().Flush()

					Expect(regFile.Snapshot()).To(Equal(ref.RegFile().Snapshot()))
					Expect(memory).To(Equal(ref.Memory()))
					Expect(p.Stats().Instructions).To(Equal(ref.InstructionCount()))
				})
			}
		}
	})
})
