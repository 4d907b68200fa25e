package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	vcs := func() map[string]string {
		return map[string]string{
			"vcs.revision": "0123456789abcdef",
			"vcs.time":     "2024-03-05T09:00:00Z",
		}
	}
	noVCS := func() map[string]string { return map[string]string{} }

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		vcs       func() map[string]string
		want      VersionInfo
	}{
		{
			name:      "release build keeps ldflags",
			version:   "v1.2.0",
			commit:    "abc123",
			buildDate: "2024-01-02T03:04:05Z",
			vcs:       vcs,
			want:      VersionInfo{Version: "v1.2.0", Commit: "abc123", BuildDate: "2024-01-02 03:04:05 UTC"},
		},
		{
			name:      "dev build reads vcs settings",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			vcs:       vcs,
			want:      VersionInfo{Version: "build-01234567", Commit: "0123456789abcdef", BuildDate: "2024-03-05 09:00:00 UTC"},
		},
		{
			name:      "dev build without vcs",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			vcs:       noVCS,
			want:      VersionInfo{Version: "build-unknown", Commit: unknownStr, BuildDate: unknownStr},
		},
		{
			name:      "unparseable build date is kept",
			version:   "v0.1.0",
			commit:    "abc",
			buildDate: "yesterday",
			vcs:       noVCS,
			want:      VersionInfo{Version: "v0.1.0", Commit: "abc", BuildDate: "yesterday"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := versionInfo(tt.version, tt.commit, tt.buildDate, tt.vcs)
			tt.want.GoVersion = runtime.Version()
			tt.want.Platform = runtime.GOOS + "/" + runtime.GOARCH
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionInfo_String(t *testing.T) {
	t.Parallel()

	info := VersionInfo{Version: "v1.0.0", Commit: "abc", BuildDate: "today", GoVersion: "go1.25", Platform: "linux/amd64"}
	assert.Equal(t, "ingestor v1.0.0 (commit abc, built today, go1.25 linux/amd64)", info.String())
}
