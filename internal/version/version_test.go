package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	prevVersion, prevSHA := Version, GitSHA
	t.Cleanup(func() { Version, GitSHA = prevVersion, prevSHA })

	Version, GitSHA = "1.2.0", "abc123"
	info := Current()
	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, "abc123", info.GitSHA)
	assert.Equal(t, "barn 1.2.0 (abc123, built unknown)", info.String())
}
