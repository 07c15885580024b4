package postgres

import (
	"context"
	"regexp"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

func newSqlmockEventStore() (*EventStore, sqlmock.Sqlmock, *sqlx.DB) {
	mockDB, mock, err := sqlmock.New()
	Expect(err).NotTo(HaveOccurred())
	db := sqlx.NewDb(mockDB, "postgres")
	return NewEventStore(db), mock, db
}

func makeEvents(n int) []store.EventRecord {
	out := make([]store.EventRecord, n)
	for i := range out {
		out[i] = store.EventRecord{
			Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			Kind:      "TOMAR_SPOOL",
			Tag:       "P-1",
		}
	}
	return out
}

var _ = Describe("EventStore.Append", func() {
	ctx := context.Background()

	It("writes a single chunk inside one transaction for fewer than 900 events", func() {
		eventStore, mock, db := newSqlmockEventStore()
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO eventos`)).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO eventos`)).WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		Expect(eventStore.Append(ctx, makeEvents(2))).To(Succeed())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("splits into two chunked transactions at the 900-row boundary", func() {
		eventStore, mock, db := newSqlmockEventStore()
		defer db.Close()

		mock.ExpectBegin()
		for i := 0; i < 900; i++ {
			mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO eventos`)).WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
		}
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO eventos`)).WillReturnResult(sqlmock.NewResult(901, 1))
		mock.ExpectCommit()

		Expect(eventStore.Append(ctx, makeEvents(901))).To(Succeed())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("rolls back the chunk's transaction when an insert fails", func() {
		eventStore, mock, db := newSqlmockEventStore()
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO eventos`)).WillReturnError(sqlmock.ErrCancelled)
		mock.ExpectRollback()

		err := eventStore.Append(ctx, makeEvents(1))
		Expect(err).To(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})

var _ = Describe("EventStore.LastForTag / ForTag", func() {
	ctx := context.Background()
	cols := []string{"id", "timestamp", "kind", "tag", "worker_id", "worker_name",
		"operacion", "accion", "fecha_operacion", "metadata_json", "n_union"}

	It("returns the most recent event for a tag", func() {
		eventStore, mock, db := newSqlmockEventStore()
		defer db.Close()

		rows := sqlmock.NewRows(cols).AddRow(
			"e1", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), "TOMAR_SPOOL", "P-1",
			93, "Maria Rojas", "ARM", "TOMAR", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), "{}", nil)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM eventos WHERE tag =`)).WithArgs("P-1").WillReturnRows(rows)

		event, found, err := eventStore.LastForTag(ctx, "P-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(event.Kind).To(Equal("TOMAR_SPOOL"))
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("reports not found when no event exists for the tag", func() {
		eventStore, mock, db := newSqlmockEventStore()
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM eventos WHERE tag =`)).
			WithArgs("P-404").WillReturnRows(sqlmock.NewRows(cols))

		_, found, err := eventStore.LastForTag(ctx, "P-404")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("returns every event for a tag in append order", func() {
		eventStore, mock, db := newSqlmockEventStore()
		defer db.Close()

		rows := sqlmock.NewRows(cols).
			AddRow("e1", time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC), "TOMAR_SPOOL", "P-1",
				93, "Maria Rojas", "ARM", "TOMAR", time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC), "{}", nil).
			AddRow("e2", time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC), "COMPLETAR_ARM", "P-1",
				93, "Maria Rojas", "ARM", "COMPLETAR", time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC), "{}", nil)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM eventos WHERE tag =`)).WithArgs("P-1").WillReturnRows(rows)

		events, err := eventStore.ForTag(ctx, "P-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(2))
		Expect(events[1].Kind).To(Equal("COMPLETAR_ARM"))
	})
})
