// Package schema implements SchemaValidator: a startup fail-fast check that
// every column and event kind the core depends on is actually present in
// the configured tables, so a misconfigured sheet/table surfaces one
// aggregated error instead of panicking column-by-column at request time
// (spec.md §2's component table; detailed in SPEC_FULL.md §15).
package schema

import (
	"strings"

	"github.com/pipeworks/shopfloor-orchestrator/internal/columnmap"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

const (
	operacionesTable = "Operaciones"
	unionesTable     = "Uniones"
)

var requiredOperacionesColumns = []string{
	"tag", "ot", "total_uniones", "ocupado_por", "fecha_ocupacion", "version", "estado_detalle",
	"armador", "fecha_armado", "soldador", "fecha_soldadura", "fecha_qc_metrologia",
}

var requiredUnionesColumns = []string{
	"ot", "n", "dn_union", "tipo_union",
	"arm_fecha_inicio", "arm_fecha_fin", "arm_worker",
	"sol_fecha_inicio", "sol_fecha_fin", "sol_worker",
	"ndt_fecha", "ndt_status", "version",
}

// RequiredEventKinds lists every EventKind the orchestrator and history
// aggregator may write or read (spec.md §6.5).
var RequiredEventKinds = []string{
	"TOMAR_SPOOL", "PAUSAR_SPOOL", "COMPLETAR_ARM", "COMPLETAR_SOLD", "COMPLETAR_METROLOGIA",
	"TOMAR_REPARACION", "PAUSAR_REPARACION", "COMPLETAR_REPARACION", "CANCELAR_REPARACION",
	"UNION_ARM_REGISTRADA", "UNION_SOLD_REGISTRADA", "SPOOL_CANCELADO", "SUPERVISOR_OVERRIDE",
}

// EventKindReader reports which event kinds are known to the configured
// backend (e.g. a CHECK constraint or enum type on the eventos table).
// A backend that does not enforce a closed kind set can implement this as
// an always-true check.
type EventKindReader interface {
	KnownEventKinds() ([]string, error)
}

// Validate runs ColumnMap.ValidateRequired against both tables and,
// when kinds is non-nil, against the event-kind allowlist, returning a
// single aggregated ValidationFailed error listing everything missing.
func Validate(cm *columnmap.Map, kinds EventKindReader) error {
	var problems []string

	if ok, missing := cm.ValidateRequired(operacionesTable, requiredOperacionesColumns); !ok {
		problems = append(problems, "Operaciones missing columns: "+strings.Join(missing, ", "))
	}
	if ok, missing := cm.ValidateRequired(unionesTable, requiredUnionesColumns); !ok {
		problems = append(problems, "Uniones missing columns: "+strings.Join(missing, ", "))
	}

	if kinds != nil {
		known, err := kinds.KnownEventKinds()
		if err != nil {
			problems = append(problems, "reading known event kinds: "+err.Error())
		} else {
			knownSet := make(map[string]struct{}, len(known))
			for _, k := range known {
				knownSet[k] = struct{}{}
			}
			var missingKinds []string
			for _, k := range RequiredEventKinds {
				if _, ok := knownSet[k]; !ok {
					missingKinds = append(missingKinds, k)
				}
			}
			if len(missingKinds) > 0 {
				problems = append(problems, "eventos missing event kinds: "+strings.Join(missingKinds, ", "))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return apperrors.NewValidationError("schema validation failed: " + strings.Join(problems, "; "))
}
