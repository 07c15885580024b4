package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when the config file exists with valid content", func() {
			BeforeEach(func() {
				valid := `
server:
  port: "9000"

postgres:
  host: "db.internal"
  port: 5432
  user: "shopfloor"
  database: "shopfloor_prod"
  ssl_mode: "require"
  max_open_conns: 50
  max_idle_conns: 10
  conn_max_lifetime: 10m

redis:
  addr: "redis.internal:6379"
  db: 1

occupation:
  ttl: 4h

logging:
  level: "warn"
  format: "console"
`
				Expect(os.WriteFile(configFile, []byte(valid), 0644)).To(Succeed())
			})

			It("loads every section", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Port).To(Equal("9000"))
				Expect(cfg.Postgres.Host).To(Equal("db.internal"))
				Expect(cfg.Postgres.ConnMaxLifetime).To(Equal(10 * time.Minute))
				Expect(cfg.Redis.Addr).To(Equal("redis.internal:6379"))
				Expect(cfg.Occupation.TTL).To(Equal(4 * time.Hour))
				Expect(cfg.Logging.Level).To(Equal("warn"))
			})
		})

		Context("when the file does not exist", func() {
			It("returns a validation-typed error", func() {
				_, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("when SHOPFLOOR_PG_PASSWORD is set", func() {
			BeforeEach(func() {
				minimal := `
postgres:
  host: "db.internal"
  user: "shopfloor"
  database: "shopfloor_prod"
`
				Expect(os.WriteFile(configFile, []byte(minimal), 0644)).To(Succeed())
				os.Setenv("SHOPFLOOR_PG_PASSWORD", "s3cret")
			})

			AfterEach(func() {
				os.Unsetenv("SHOPFLOOR_PG_PASSWORD")
			})

			It("overrides the password from the environment", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Postgres.Password).To(Equal("s3cret"))
			})
		})
	})

	Describe("Default", func() {
		It("returns usable defaults", func() {
			cfg := Default()
			Expect(cfg.Validate()).To(Succeed())
			Expect(cfg.Occupation.TTL).To(Equal(4 * time.Hour))
		})
	})

	Describe("Validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = Default()
		})

		It("rejects an empty postgres host", func() {
			cfg.Postgres.Host = ""
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("postgres host is required"))
		})

		It("rejects an out-of-range postgres port", func() {
			cfg.Postgres.Port = 70000
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("between 1 and 65535"))
		})

		It("rejects a non-positive occupation ttl", func() {
			cfg.Occupation.TTL = 0
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("occupation ttl must be positive"))
		})

		It("rejects a missing redis addr", func() {
			cfg.Redis.Addr = ""
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("redis addr is required"))
		})
	})
})
