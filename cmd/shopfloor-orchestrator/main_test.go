package main

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pipeworks/shopfloor-orchestrator/internal/config"
)

func TestMain_(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Orchestrator Entrypoint Suite")
}

var _ = Describe("buildLogger", func() {
	It("builds a production logger for json format", func() {
		log, err := buildLogger(config.LoggingConfig{Level: "info", Format: "json"})
		Expect(err).NotTo(HaveOccurred())
		Expect(log).NotTo(BeNil())
	})

	It("builds a development logger for console format", func() {
		log, err := buildLogger(config.LoggingConfig{Level: "debug", Format: "console"})
		Expect(err).NotTo(HaveOccurred())
		Expect(log).NotTo(BeNil())
	})

	It("rejects an invalid log level", func() {
		_, err := buildLogger(config.LoggingConfig{Level: "not-a-level", Format: "json"})
		Expect(err).To(HaveOccurred())
	})
})
