package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "ocpanel ")
	assert.Contains(t, info.String(), "Go Version:")
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.2.0",
		BuildDate: "2024-01-01T00:00:00Z",
		GitCommit: "abc123def456",
		GoVersion: "go1.24.0",
	}

	str := info.String()
	assert.Contains(t, str, "ocpanel v1.2.0\n")
	assert.Contains(t, str, "Build Date: 2024-01-01T00:00:00Z")
	assert.Contains(t, str, "Git Commit: abc123d")
	assert.Contains(t, str, "Go Version: go1.24.0")
	assert.NotContains(t, str, "dirty")

	info.Dirty = true
	info.BuildDate = unknownValue
	info.GitCommit = unknownValue
	str = info.String()
	assert.Contains(t, str, "(dirty)")
	assert.NotContains(t, str, "Build Date")
	assert.NotContains(t, str, "Git Commit")
}

func TestReleaseFlags(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	tests := []struct {
		version string
		release bool
	}{
		{"dev", false},
		{"v1.0.0", true},
		{"v1.1.0-rc.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.release, IsRelease())
			assert.Equal(t, "ocpanel/"+tt.version, UserAgent())
		})
	}
}
