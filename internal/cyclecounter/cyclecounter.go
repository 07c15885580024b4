// Package cyclecounter parses, increments, and formats the consecutive
// METROLOGIA-rejection count embedded in estado_detalle (spec.md §4.2). It
// is the only writer of this display field's cycle fragment; CycleCounter
// never owns a dedicated column.
package cyclecounter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxCycle is the bound c is capped at (spec.md I6: c ∈ [0,3]).
const MaxCycle = 3

var cyclePattern = regexp.MustCompile(`Ciclo (\d+)/3`)

// Kind selects which canonical display string Format renders.
type Kind int

const (
	KindRechazado Kind = iota
	KindBloqueado
	KindEnReparacion
	KindReparacionPausada
	KindPendienteMetrologia
	KindMetrologiaAprobado
)

// Extract returns the consecutive-rejection count encoded in s: the
// "Ciclo N/3" capture if present, 3 if s contains "BLOQUEADO", otherwise 0.
func Extract(s string) int {
	if strings.Contains(s, "BLOQUEADO") {
		return MaxCycle
	}
	if m := cyclePattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	return 0
}

// Increment returns c+1 capped at MaxCycle.
func Increment(c int) int {
	if c+1 > MaxCycle {
		return MaxCycle
	}
	return c + 1
}

// ShouldBlock reports whether c has reached the cap, per I6.
func ShouldBlock(c int) bool { return c >= MaxCycle }

// Format renders the canonical estado_detalle fragment for kind, given the
// current cycle count and, where relevant, the occupying worker's
// canonical string form (spec.md §4.2).
func Format(kind Kind, c int, worker string) string {
	switch kind {
	case KindRechazado:
		return fmt.Sprintf("RECHAZADO (Ciclo %d/3) - Pendiente reparación", c)
	case KindBloqueado:
		return "BLOQUEADO - Contactar supervisor"
	case KindEnReparacion:
		return fmt.Sprintf("EN_REPARACION (Ciclo %d/3) - Ocupado: %s", c, worker)
	case KindReparacionPausada:
		return fmt.Sprintf("REPARACION_PAUSADA (Ciclo %d/3)", c)
	case KindPendienteMetrologia:
		if c <= 0 {
			return "PENDIENTE_METROLOGIA"
		}
		return fmt.Sprintf("PENDIENTE_METROLOGIA (Ciclo %d/3)", c)
	case KindMetrologiaAprobado:
		return "METROLOGIA_APROBADO ✓"
	default:
		return ""
	}
}

// Reset returns the display string METROLOGIA APROBADO writes, resetting
// the cycle carrier to its zero state (spec.md §4.2).
func Reset() string {
	return Format(KindMetrologiaAprobado, 0, "")
}

// RechazadoOrBloqueado picks KindBloqueado once c has reached MaxCycle,
// otherwise KindRechazado — the branch METROLOGIA's RECHAZADO on-entry
// callback takes (spec.md §4.3.3).
func RechazadoOrBloqueado(c int) Kind {
	if ShouldBlock(c) {
		return KindBloqueado
	}
	return KindRechazado
}
