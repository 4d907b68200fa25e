package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/onsi/gomega"
)

// TestConfig locates the files of one test environment
type TestConfig struct {
	Path       string
	StatusPath string
	SinkDir    string
}

// WriteConfigYAML writes a config with one task per source pointing at
// endpoint, file based stores under dir, and the given extra YAML appended
func WriteConfigYAML(dir, endpoint, extra string) TestConfig {
	secretFile := filepath.Join(dir, "source.token")
	gomega.Expect(os.WriteFile(secretFile, []byte("integration-token\n"), 0600)).To(gomega.Succeed())

	tc := TestConfig{
		Path:       filepath.Join(dir, "config.yaml"),
		StatusPath: filepath.Join(dir, "data", "status.json"),
		SinkDir:    filepath.Join(dir, "data", "sink"),
	}

	content := fmt.Sprintf(`statusStore:
  type: file
  path: %[1]s
sink:
  type: file
  dir: %[2]s
schedule:
  interval: 1h
summary:
  format: json
httpTimeout: 5s
tasks:
  - name: snaptrade
    source: snaptrade
    endpoint: %[3]s
    clientId: integration
    tokenFile: %[4]s
    policy:
      type: lookback
      default: 6h
  - name: discord
    source: discord
    endpoint: %[3]s
    tokenFile: %[4]s
    channels: ["100", "200"]
    maxPages: 5
  - name: ohlcv
    source: ohlcv
    endpoint: %[3]s
    symbols: [AAPL, MSFT]
    policy:
      type: calendarDay
      date: "2024-03-01"
%[5]s`, tc.StatusPath, tc.SinkDir, endpoint, secretFile, extra)

	gomega.Expect(os.WriteFile(tc.Path, []byte(content), 0600)).To(gomega.Succeed())
	return tc
}
