package staticdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

func TestStaticdir(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Static Worker Directory Suite")
}

const rosterYAML = `
workers:
  - id: 93
    name: Maria Reyes
    initials: MR
    roles: [armador]
  - id: 94
    name: Juan Perez
    initials: JP
    roles: [soldador, metrologia]
`

var _ = Describe("Directory", func() {
	ctx := context.Background()

	writeRoster := func(contents string) string {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "roster.yaml")
		Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
		return path
	}

	It("loads workers and their roles from a YAML roster", func() {
		path := writeRoster(rosterYAML)
		dir, err := Load(path)
		Expect(err).NotTo(HaveOccurred())

		w, ok, err := dir.Lookup(ctx, 93)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(w.Canonical()).To(Equal("MR(93)"))
		Expect(w.HasRole("armador")).To(BeTrue())
		Expect(w.HasRole("soldador")).To(BeFalse())
	})

	It("reports ok=false for an unknown worker id", func() {
		path := writeRoster(rosterYAML)
		dir, err := Load(path)
		Expect(err).NotTo(HaveOccurred())

		_, ok, err := dir.Lookup(ctx, 999)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("rejects a roster entry with no initials", func() {
		path := writeRoster("workers:\n  - id: 1\n    name: Nobody\n")
		_, err := Load(path)
		Expect(err).To(HaveOccurred())
		Expect(apperrors.IsType(err, apperrors.ErrorTypeValidation)).To(BeTrue())
	})

	It("fails on a missing file", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("Seed overwrites an existing entry by id", func() {
		d := New()
		d.Seed(domain.NewWorkerRef(93, "Maria Reyes", "MR"))
		d.Seed(domain.NewWorkerRef(93, "Maria R. Reyes", "MR"))

		w, ok, err := d.Lookup(ctx, 93)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(w.Name).To(Equal("Maria R. Reyes"))
	})
})
