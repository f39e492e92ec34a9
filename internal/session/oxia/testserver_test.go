package oxia

import (
	"os"
	"testing"

	"github.com/oxia-db/oxia/oxiad/dataserver"
)

// startTestServer returns the address of an Oxia server for tests. If
// OXIA_SERVICE_ADDRESS is set that server is used, otherwise an embedded
// standalone server is started and stopped via t.Cleanup.
func startTestServer(t *testing.T) string {
	t.Helper()

	if addr := os.Getenv("OXIA_SERVICE_ADDRESS"); addr != "" {
		t.Logf("Using external Oxia server at %s", addr)
		return addr
	}

	dir := t.TempDir()
	standalone, err := dataserver.NewStandalone(dataserver.NewTestConfig(dir))
	if err != nil {
		t.Fatalf("failed to start Oxia standalone server: %v", err)
	}
	t.Cleanup(func() {
		_ = standalone.Close()
	})

	t.Logf("Started embedded Oxia server at %s", standalone.ServiceAddr())
	return standalone.ServiceAddr()
}
