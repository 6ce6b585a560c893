package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
)

var _ = Describe("ALU", func() {
	alu := emu.NewALU()

	DescribeTable("Compute",
		func(op insts.Op, x, y, want int32) {
			Expect(alu.Compute(op, x, y)).To(Equal(want))
		},
		Entry("add", insts.OpADD, int32(3), int32(4), int32(7)),
		Entry("add wraps", insts.OpADD, int32(math.MaxInt32), int32(1), int32(math.MinInt32)),
		Entry("sub", insts.OpSUB, int32(3), int32(4), int32(-1)),
		Entry("sub wraps", insts.OpSUB, int32(math.MinInt32), int32(1), int32(math.MaxInt32)),
		Entry("and", insts.OpAND, int32(0b1100), int32(0b1010), int32(0b1000)),
		Entry("or", insts.OpOR, int32(0b1100), int32(0b1010), int32(0b1110)),
		Entry("xor", insts.OpXOR, int32(0b1100), int32(0b1010), int32(0b0110)),
		Entry("slt less", insts.OpSLT, int32(-5), int32(2), int32(1)),
		Entry("slt not less", insts.OpSLT, int32(2), int32(2), int32(0)),
		Entry("addi", insts.OpADDI, int32(10), int32(-3), int32(7)),
		Entry("lw address", insts.OpLW, int32(100), int32(4), int32(104)),
		Entry("nop", insts.OpNOP, int32(1), int32(2), int32(0)),
	)

	DescribeTable("BranchTaken",
		func(op insts.Op, x, y int32, want bool) {
			Expect(alu.BranchTaken(op, x, y)).To(Equal(want))
		},
		Entry("beq equal", insts.OpBEQ, int32(1), int32(1), true),
		Entry("beq different", insts.OpBEQ, int32(1), int32(2), false),
		Entry("bne equal", insts.OpBNE, int32(1), int32(1), false),
		Entry("bne different", insts.OpBNE, int32(1), int32(2), true),
		Entry("not a branch", insts.OpADD, int32(1), int32(2), false),
	)

	It("should clear the low bit of a jalr target", func() {
		Expect(alu.JumpTarget(5, 0)).To(Equal(4))
		Expect(alu.JumpTarget(3, 3)).To(Equal(6))
	})
})
