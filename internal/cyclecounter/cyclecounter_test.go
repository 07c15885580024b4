package cyclecounter

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCycleCounter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CycleCounter Suite")
}

var _ = Describe("Extract", func() {
	It("parses the Ciclo N/3 capture", func() {
		Expect(Extract("RECHAZADO (Ciclo 2/3) - Pendiente reparación")).To(Equal(2))
	})

	It("returns 3 when BLOQUEADO is present regardless of any cycle text", func() {
		Expect(Extract("BLOQUEADO - Contactar supervisor")).To(Equal(3))
	})

	It("returns 0 for a string with no cycle marker", func() {
		Expect(Extract("PENDIENTE_METROLOGIA")).To(Equal(0))
		Expect(Extract("")).To(Equal(0))
	})

	It("round-trips the cycle count carried through PENDIENTE_METROLOGIA", func() {
		Expect(Extract(Format(KindPendienteMetrologia, 2, ""))).To(Equal(2))
	})
})

var _ = Describe("Increment", func() {
	It("increments below the cap", func() {
		Expect(Increment(0)).To(Equal(1))
		Expect(Increment(1)).To(Equal(2))
		Expect(Increment(2)).To(Equal(3))
	})

	It("caps at MaxCycle", func() {
		Expect(Increment(3)).To(Equal(3))
	})
})

var _ = Describe("ShouldBlock", func() {
	It("is false below the cap and true at or above it", func() {
		Expect(ShouldBlock(2)).To(BeFalse())
		Expect(ShouldBlock(3)).To(BeTrue())
	})
})

var _ = Describe("Format", func() {
	It("renders each canonical display string", func() {
		Expect(Format(KindRechazado, 2, "")).To(Equal("RECHAZADO (Ciclo 2/3) - Pendiente reparación"))
		Expect(Format(KindBloqueado, 3, "")).To(Equal("BLOQUEADO - Contactar supervisor"))
		Expect(Format(KindEnReparacion, 1, "MR(93)")).To(Equal("EN_REPARACION (Ciclo 1/3) - Ocupado: MR(93)"))
		Expect(Format(KindReparacionPausada, 1, "")).To(Equal("REPARACION_PAUSADA (Ciclo 1/3)"))
		Expect(Format(KindPendienteMetrologia, 0, "")).To(Equal("PENDIENTE_METROLOGIA"))
		Expect(Format(KindPendienteMetrologia, 2, "")).To(Equal("PENDIENTE_METROLOGIA (Ciclo 2/3)"))
		Expect(Format(KindMetrologiaAprobado, 0, "")).To(Equal("METROLOGIA_APROBADO ✓"))
	})
})

var _ = Describe("Reset", func() {
	It("returns the APROBADO display string", func() {
		Expect(Reset()).To(Equal("METROLOGIA_APROBADO ✓"))
	})
})

var _ = Describe("RechazadoOrBloqueado", func() {
	It("picks RECHAZADO below the cap and BLOQUEADO at the cap", func() {
		Expect(RechazadoOrBloqueado(2)).To(Equal(KindRechazado))
		Expect(RechazadoOrBloqueado(3)).To(Equal(KindBloqueado))
	})

	It("round-trips the 3rd-consecutive-rejection boundary from spec.md S3", func() {
		c := Extract("RECHAZADO (Ciclo 2/3) - Pendiente reparación")
		c = Increment(c)
		Expect(c).To(Equal(3))
		Expect(RechazadoOrBloqueado(c)).To(Equal(KindBloqueado))
		Expect(Format(RechazadoOrBloqueado(c), c, "")).To(ContainSubstring("BLOQUEADO"))
	})
})
