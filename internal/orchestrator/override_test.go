package orchestrator

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

var _ = Describe("Execute: supervisor override detection (S5)", func() {
	repairer := domain.NewWorkerRef(20, "Rene Pair", "RP")

	It("emits SUPERVISOR_OVERRIDE when a BLOQUEADO row is cleared out-of-band", func() {
		o, rows := newOrchestrator(operacionesHeaders)
		ctx := context.Background()

		// A prior event recorded the spool as BLOQUEADO...
		meta, _ := json.Marshal(eventMetadata{Tag: "P-1", EstadoDetalle: "BLOQUEADO - Contactar supervisor"})
		Expect(rows.Append(ctx, []store.EventRecord{{
			Timestamp:    fixedNow,
			Kind:         string(domain.EventCompletarMetrologia),
			Tag:          "P-1",
			MetadataJSON: string(meta),
		}})).To(Succeed())

		// ...but a supervisor cleared it directly in the row, out-of-band.
		rows.SeedRow("Operaciones", store.Row{
			"tag": "P-1", "estado_detalle": "RECHAZADO (Ciclo 2/3) - Pendiente reparación",
		})

		_, err := o.Execute(ctx, Request{
			Tag: "P-1", Worker: repairer, Operacion: domain.OperationReparacion, Accion: domain.AccionTomar,
		})
		Expect(err).NotTo(HaveOccurred())

		// Detection runs before this request's own TOMAR_REPARACION event is
		// appended, so the override is found among the tag's events rather
		// than as the last one.
		events, ferr := rows.ForTag(ctx, "P-1")
		Expect(ferr).NotTo(HaveOccurred())
		var overrides []store.EventRecord
		for _, e := range events {
			if e.Kind == string(domain.EventSupervisorOverride) {
				overrides = append(overrides, e)
			}
		}
		Expect(overrides).To(HaveLen(1))
		Expect(overrides[0].MetadataJSON).To(ContainSubstring("BLOQUEADO"))
		Expect(overrides[0].MetadataJSON).To(ContainSubstring("RECHAZADO (Ciclo 2/3)"))
	})

	It("does not emit SUPERVISOR_OVERRIDE when the last event was not BLOQUEADO", func() {
		o, rows := newOrchestrator(operacionesHeaders)
		ctx := context.Background()
		rows.SeedRow("Operaciones", store.Row{"tag": "P-2"})

		_, err := o.Execute(ctx, Request{
			Tag: "P-2", Worker: repairer, Operacion: domain.OperationARM, Accion: domain.AccionTomar,
		})
		Expect(err).NotTo(HaveOccurred())

		last, found, ferr := rows.LastForTag(ctx, "P-2")
		Expect(ferr).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(last.Kind).NotTo(Equal(string(domain.EventSupervisorOverride)))
	})
})
