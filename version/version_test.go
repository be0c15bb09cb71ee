package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, ArtifactFormatConstraint, info.ArtifactFormat)
	assert.Contains(t, info.Platform, runtime.GOOS)
}

func TestString(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abc", BuildTime: "now"}
	assert.Equal(t, "nrps dev (commit abc, built now)", dev.String())

	tagged := Info{Version: "1.2.0", CommitHash: "abc", BuildTime: "now"}
	assert.Equal(t, "nrps 1.2.0 (commit abc, built now)", tagged.String())
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456", Info{CommitHash: "0123456789"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}
