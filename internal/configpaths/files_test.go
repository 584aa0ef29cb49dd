package configpaths_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/loadergen/internal/configpaths"
)

func TestConfigCandidatePathsUserPathFirst(t *testing.T) {
	tests := []struct {
		user   string
		bucket int
	}{
		{"my.json", 0},
		{"my.yaml", 1},
		{"my.yml", 1},
		{"my.toml", 2},
		{"my.conf", 0},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			j, y, tm := configpaths.ConfigCandidatePaths(tt.user)
			buckets := [][]string{j, y, tm}
			require.NotEmpty(t, buckets[tt.bucket])
			assert.Equal(t, tt.user, buckets[tt.bucket][0])
		})
	}
}

func TestConfigCandidatePathsWorkingDir(t *testing.T) {
	j, y, tm := configpaths.ConfigCandidatePaths("")
	require.NotEmpty(t, j)
	assert.Equal(t, "loadergen.json", filepath.Base(j[0]))
	assert.Equal(t, "loadergen.yaml", filepath.Base(y[0]))
	assert.Equal(t, "loadergen.yml", filepath.Base(y[1]))
	assert.Equal(t, "loadergen.toml", filepath.Base(tm[0]))
}

func TestDefaultConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG lookup is unix only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := configpaths.DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "loadergen"), dir)
}
