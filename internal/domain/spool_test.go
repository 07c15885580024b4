package domain

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDomain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Domain Suite")
}

var _ = Describe("UnionProgress", func() {
	done := time.Unix(0, 0)
	unions := []Union{
		{N: 1, DNUnion: 10, ArmFechaFin: done},
		{N: 2, DNUnion: 20.555},
		{N: 3, DNUnion: 4, ArmFechaFin: done, SolFechaFin: done},
	}

	It("counts and sums dn_union for completed ARM legs (I5)", func() {
		completadas, pulgadas := UnionProgress(unions, OperationARM)
		Expect(completadas).To(Equal(2))
		Expect(pulgadas).To(Equal(14.0))
	})

	It("counts and sums dn_union for completed SOLD legs (I5)", func() {
		completadas, pulgadas := UnionProgress(unions, OperationSOLD)
		Expect(completadas).To(Equal(1))
		Expect(pulgadas).To(Equal(4.0))
	})

	It("returns zero for no completed legs", func() {
		completadas, pulgadas := UnionProgress(nil, OperationARM)
		Expect(completadas).To(Equal(0))
		Expect(pulgadas).To(Equal(0.0))
	})

	It("rounds the sum to 2 decimals", func() {
		completadas, pulgadas := UnionProgress([]Union{
			{N: 1, DNUnion: 10.125, ArmFechaFin: done},
			{N: 2, DNUnion: 10.128, ArmFechaFin: done},
		}, OperationARM)
		Expect(completadas).To(Equal(2))
		Expect(pulgadas).To(Equal(20.25))
	})
})
