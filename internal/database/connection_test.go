package database

import (
	"testing"

	"go.uber.org/zap"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pipeworks/shopfloor-orchestrator/internal/config"
)

func TestDatabase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Database Suite")
}

var _ = Describe("ConnectionString", func() {
	var cfg *config.PostgresConfig

	BeforeEach(func() {
		cfg = &config.PostgresConfig{
			Host: "localhost", Port: 5432, User: "testuser", Database: "testdb", SSLMode: "disable",
		}
	})

	Context("when a password is set", func() {
		It("includes it in the DSN", func() {
			cfg.Password = "testpass"
			Expect(ConnectionString(cfg)).To(Equal(
				"host=localhost port=5432 user=testuser dbname=testdb sslmode=disable password=testpass"))
		})
	})

	Context("when no password is set", func() {
		It("omits password entirely", func() {
			result := ConnectionString(cfg)
			Expect(result).To(Equal("host=localhost port=5432 user=testuser dbname=testdb sslmode=disable"))
			Expect(result).NotTo(ContainSubstring("password="))
		})
	})

	Context("when ssl mode is unset", func() {
		It("defaults to disable", func() {
			cfg.SSLMode = ""
			Expect(ConnectionString(cfg)).To(ContainSubstring("sslmode=disable"))
		})
	})
})

var _ = Describe("Connect", func() {
	It("rejects a config with an empty host before opening any connection", func() {
		cfg := &config.PostgresConfig{Host: "", Port: 5432, User: "testuser", Database: "testdb"}
		_, err := Connect(nil, cfg, zap.NewNop())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("invalid database configuration"))
	})

	It("rejects a config with an out-of-range port", func() {
		cfg := &config.PostgresConfig{Host: "localhost", Port: 0, User: "testuser", Database: "testdb"}
		_, err := Connect(nil, cfg, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	// A real connection attempt requires a live Postgres instance and is
	// exercised by the integration suite, not here.
})
