package domain

import (
	"strconv"
	"time"
)

// field reads row[NormalizeName(name)], tolerating a header row store.Row
// never had that column by returning "".
func field(row map[string]string, name string) string {
	return row[NormalizeName(name)]
}

func parseTimeField(row map[string]string, name, layout string) time.Time {
	v := field(row, name)
	if v == "" {
		return time.Time{}
	}
	loc, err := time.LoadLocation(TimeZone)
	if err != nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, v, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseInt(row map[string]string, name string) int {
	n, err := strconv.Atoi(field(row, name))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(row map[string]string, name string) float64 {
	f, err := strconv.ParseFloat(field(row, name), 64)
	if err != nil {
		return 0
	}
	return f
}

// RowToSpool parses a RowStore row from the Operaciones table into a Spool
// (spec.md §6.1 read_row, §3.1 entity shape). Unknown or blank fields
// default to their zero value; a fresh request re-reads the row, so a
// parse miss surfaces as a validation failure downstream rather than here.
func RowToSpool(tag string, row map[string]string) Spool {
	return Spool{
		Tag:               tag,
		OT:                field(row, "ot"),
		TotalUniones:      parseInt(row, "total_uniones"),
		OcupadoPor:        field(row, "ocupado_por"),
		FechaOcupacion:    parseTimeField(row, "fecha_ocupacion", TimeLayout),
		Version:           field(row, "version"),
		EstadoDetalle:     field(row, "estado_detalle"),
		Armador:           field(row, "armador"),
		FechaArmado:       parseTimeField(row, "fecha_armado", DateLayout),
		Soldador:          field(row, "soldador"),
		FechaSoldadura:    parseTimeField(row, "fecha_soldadura", DateLayout),
		FechaQCMetrologia: parseTimeField(row, "fecha_qc_metrologia", DateLayout),
	}
}

// RowToUnion parses a RowStore row from the Uniones table into a Union.
func RowToUnion(ot string, n int, row map[string]string) Union {
	return Union{
		OT:             ot,
		N:              n,
		DNUnion:        parseFloat(row, "dn_union"),
		TipoUnion:      field(row, "tipo_union"),
		ArmFechaInicio: parseTimeField(row, "arm_fecha_inicio", TimeLayout),
		ArmFechaFin:    parseTimeField(row, "arm_fecha_fin", TimeLayout),
		ArmWorker:      field(row, "arm_worker"),
		SolFechaInicio: parseTimeField(row, "sol_fecha_inicio", TimeLayout),
		SolFechaFin:    parseTimeField(row, "sol_fecha_fin", TimeLayout),
		SolWorker:      field(row, "sol_worker"),
		NDTFecha:       parseTimeField(row, "ndt_fecha", TimeLayout),
		NDTStatus:      field(row, "ndt_status"),
		Version:        field(row, "version"),
	}
}
