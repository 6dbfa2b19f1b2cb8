package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		wantErr  bool
		validate func(*testing.T, *Config)
	}{
		{
			name:    "overrides",
			content: "auto_detect_offset: false\ndefault_offset: 1024\ncache_size: 4\n",
			validate: func(t *testing.T, c *Config) {
				assert.False(t, c.AutoDetectOffset)
				assert.Equal(t, int64(1024), c.DefaultOffset)
				assert.Equal(t, 4, c.CacheSize)
				assert.True(t, c.CacheEnabled)
			},
		},
		{
			name:    "defaults",
			content: "{}\n",
			validate: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultConfig(), c)
			},
		},
		{
			name:    "negative cache size",
			content: "cache_size: -1\n",
			wantErr: true,
		},
		{
			name:    "negative offset",
			content: "default_offset: -8\n",
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "config"+string(rune('a'+i))+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			config, err := LoadConfigFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTestImagePath(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, filepath.Join("testdata", "sample.sqfs"), TestImagePath("sample.sqfs", config))
}
