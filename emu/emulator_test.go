package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
)

func decode(lines ...string) []*insts.Instruction {
	program, diags := insts.DecodeProgram(lines)
	Expect(diags).To(BeEmpty())
	return program
}

var _ = Describe("Emulator", func() {
	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			e := emu.NewEmulator(nil)

			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.PC()).To(Equal(0))
			Expect(e.Done()).To(BeTrue())
		})

		It("should use a supplied memory", func() {
			memory := emu.NewMemory()
			memory.Write(3, 99)

			e := emu.NewEmulator(decode("lw x1, 3(x0)"), emu.WithMemory(memory))
			Expect(e.Run()).To(Succeed())

			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(99)))
		})
	})

	Describe("Step", func() {
		It("should execute one instruction and advance the PC", func() {
			e := emu.NewEmulator(decode("addi x1, x0, 5", "addi x2, x1, 1"))

			result := e.Step()

			Expect(result.Exited).To(BeFalse())
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.PC()).To(Equal(1))
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(5)))
		})

		It("should report exit after the last instruction", func() {
			e := emu.NewEmulator(decode("addi x1, x0, 5"))

			Expect(e.Step().Exited).To(BeTrue())
			Expect(e.Step().Exited).To(BeTrue())
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})
	})

	Describe("Run", func() {
		It("should compute the alu1 loop sum", func() {
			e := emu.NewEmulator(decode(
				"addi x1, x0, 10",
				"addi x2, x0, 0",
				"addi x5, x0, 1",
				"loop:",
				"add x2, x2, x1",
				"sub x1, x1, x5",
				"bne x1, x0, -2",
				"nop",
			))

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(55)))
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(0)))
			Expect(e.InstructionCount()).To(Equal(uint64(3 + 10*3)))
		})

		It("should store and load through memory", func() {
			e := emu.NewEmulator(decode(
				"addi x1, x0, 7",
				"sw x1, 4(x0)",
				"lw x3, 4(x0)",
			))

			Expect(e.Run()).To(Succeed())
			Expect(e.Memory().Read(4)).To(Equal(int32(7)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(int32(7)))
		})

		It("should skip instructions over a taken branch", func() {
			e := emu.NewEmulator(decode(
				"beq x0, x0, 2",
				"addi x1, x0, 1",
				"addi x2, x0, 2",
			))

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(0)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(2)))
		})

		It("should link and jump with jal and jalr", func() {
			e := emu.NewEmulator(decode(
				"addi x1, x0, 4",
				"jal x6, 2",
				"addi x2, x0, 9",
				"jalr x5, 1(x1)",
				"addi x3, x0, 4",
			))

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(6)).To(Equal(int32(2)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(0)))
			Expect(e.RegFile().ReadReg(5)).To(Equal(int32(4)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(int32(4)))
		})

		It("should read the jalr base before writing the link register", func() {
			e := emu.NewEmulator(decode(
				"addi x1, x0, 4",
				"jalr x1, 0(x1)",
				"addi x2, x0, 1",
				"nop",
				"addi x3, x0, 1",
			))

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(2)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(0)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(int32(1)))
		})

		It("should never write x0", func() {
			e := emu.NewEmulator(decode("addi x0, x0, 5", "add x1, x0, x0"))

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(0)))
		})

		It("should stop at the instruction limit", func() {
			e := emu.NewEmulator(
				decode("beq x0, x0, 0"),
				emu.WithMaxInstructions(100),
			)

			err := e.Run()

			Expect(err).To(MatchError(emu.ErrMaxInstructions))
			Expect(e.InstructionCount()).To(Equal(uint64(100)))
		})
	})
})
