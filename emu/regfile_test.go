package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpipe/emu"
)

var _ = Describe("RegFile", func() {
	var regFile *emu.RegFile

	BeforeEach(func() {
		regFile = &emu.RegFile{}
	})

	It("should read back written values", func() {
		regFile.WriteReg(5, -42)
		Expect(regFile.ReadReg(5)).To(Equal(int32(-42)))
	})

	It("should always read x0 as zero", func() {
		for _, v := range []int32{1, -1, 0x7fffffff} {
			regFile.WriteReg(0, v)
			Expect(regFile.ReadReg(0)).To(Equal(int32(0)))
		}
		Expect(regFile.X[0]).To(Equal(int32(0)))
	})

	It("should ignore out-of-range registers", func() {
		regFile.WriteReg(32, 7)
		Expect(regFile.ReadReg(32)).To(Equal(int32(0)))
	})

	It("should snapshot independently of later writes", func() {
		regFile.WriteReg(1, 10)
		snap := regFile.Snapshot()
		regFile.WriteReg(1, 20)

		Expect(snap[1]).To(Equal(int32(10)))
	})

	It("should reset all registers", func() {
		regFile.WriteReg(31, 9)
		regFile.Reset()
		Expect(regFile.ReadReg(31)).To(Equal(int32(0)))
	})

	It("should dump registers in order", func() {
		regFile.WriteReg(1, 3)
		dump := regFile.Dump()

		Expect(dump).To(HavePrefix("x0=0 x1=3 x2=0"))
		Expect(dump).To(HaveSuffix("x31=0"))
	})
})
