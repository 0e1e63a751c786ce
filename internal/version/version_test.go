package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := [3]string{Version, GitSHA, BuildTime}
	t.Cleanup(func() { Version, GitSHA, BuildTime = old[0], old[1], old[2] })

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2026-01-01"
	assert.Equal(t, "gridsim 1.2.3 (abc123, built 2026-01-01)", String())
}
