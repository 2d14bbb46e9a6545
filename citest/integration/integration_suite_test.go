package integration_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nbkit/nbkit/citest/testutil"
	"github.com/nbkit/nbkit/internal/config"
)

var (
	jupyter *testutil.JupyterServer
	ctx     context.Context
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

var _ = BeforeSuite(func() {
	jupyter = testutil.StartJupyterServer("test-token")
	ctx = context.Background()
})

var _ = AfterSuite(func() {
	if jupyter != nil {
		jupyter.Stop()
	}
})

// testConfig builds a client configuration pointed at the fake server.
func testConfig() *config.Config {
	return &config.Config{
		ServerURL:     jupyter.URL,
		Token:         "test-token",
		Username:      "citest",
		DefaultKernel: "python3",
	}
}
