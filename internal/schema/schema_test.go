package schema

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pipeworks/shopfloor-orchestrator/internal/columnmap"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

type fakeHeaders map[string][]string

func (f fakeHeaders) ReadHeader(table string) ([]string, error) {
	return f[table], nil
}

type fakeKinds struct {
	kinds []string
	err   error
}

func (f fakeKinds) KnownEventKinds() ([]string, error) {
	return f.kinds, f.err
}

func completeHeaders() fakeHeaders {
	return fakeHeaders{
		operacionesTable: requiredOperacionesColumns,
		unionesTable:     requiredUnionesColumns,
	}
}

var _ = Describe("Validate", func() {
	It("succeeds when every required column and event kind is present", func() {
		cm := columnmap.New(completeHeaders())
		err := Validate(cm, fakeKinds{kinds: RequiredEventKinds})
		Expect(err).NotTo(HaveOccurred())
	})

	It("succeeds with a nil EventKindReader", func() {
		cm := columnmap.New(completeHeaders())
		Expect(Validate(cm, nil)).To(Succeed())
	})

	It("reports every missing Operaciones column in one aggregated error", func() {
		headers := completeHeaders()
		headers[operacionesTable] = []string{"tag", "ot"}
		cm := columnmap.New(headers)

		err := Validate(cm, fakeKinds{kinds: RequiredEventKinds})
		Expect(err).To(HaveOccurred())
		Expect(apperrors.IsType(err, apperrors.ErrorTypeValidation)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("Operaciones missing columns"))
		Expect(err.Error()).To(ContainSubstring("version"))
	})

	It("reports missing Uniones columns", func() {
		headers := completeHeaders()
		headers[unionesTable] = []string{"ot", "n"}
		cm := columnmap.New(headers)

		err := Validate(cm, fakeKinds{kinds: RequiredEventKinds})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Uniones missing columns"))
	})

	It("reports missing event kinds without touching column checks", func() {
		cm := columnmap.New(completeHeaders())
		err := Validate(cm, fakeKinds{kinds: []string{"TOMAR_SPOOL"}})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("eventos missing event kinds"))
		Expect(err.Error()).To(ContainSubstring("SUPERVISOR_OVERRIDE"))
		Expect(err.Error()).NotTo(ContainSubstring("Operaciones missing"))
	})

	It("aggregates column and event kind problems into a single error", func() {
		headers := fakeHeaders{operacionesTable: []string{"tag"}, unionesTable: []string{"ot"}}
		cm := columnmap.New(headers)
		err := Validate(cm, fakeKinds{kinds: nil})

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Operaciones missing columns"))
		Expect(err.Error()).To(ContainSubstring("Uniones missing columns"))
		Expect(err.Error()).To(ContainSubstring("eventos missing event kinds"))
	})

	It("surfaces an error reading known event kinds", func() {
		cm := columnmap.New(completeHeaders())
		err := Validate(cm, fakeKinds{err: apperrors.New(apperrors.ErrorTypeDatabase, "boom")})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("reading known event kinds"))
	})
})
