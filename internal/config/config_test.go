package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.True(t, cfg.UseTrash)
	assert.False(t, cfg.ShowHidden)
	assert.Equal(t, 250*time.Millisecond, cfg.Preview.PrefetchDelay)
	assert.Equal(t, 32, cfg.Store.Snapshots)
	assert.GreaterOrEqual(t, cfg.Preview.Workers, 1)
	assert.LessOrEqual(t, cfg.Preview.Workers, 4)
	assert.GreaterOrEqual(t, cfg.Preview.CacheBytes, int64(minDefaultCacheBytes))
	assert.LessOrEqual(t, cfg.Preview.CacheBytes, int64(maxDefaultCacheBytes))
}

func TestPrefetchRadiusZeroDisablesAndNegativeClamps(t *testing.T) {
	v := New()
	v.Set("preview.prefetch_radius", 0)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Preview.PrefetchRadius)

	v.Set("preview.prefetch_radius", -3)
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Preview.PrefetchRadius)
}

func TestFileEnvAndFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "use_trash: false\nshow_hidden: true\npreview:\n  workers: 2\n  prefetch_delay: 1s\n  highlight_style: dracula\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MILL_PREVIEW_HIGHLIGHT_STYLE", "github")

	flags := pflag.NewFlagSet("mill", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--workers=3"}))

	v := New()
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.False(t, cfg.UseTrash)
	assert.True(t, cfg.ShowHidden)
	assert.Equal(t, time.Second, cfg.Preview.PrefetchDelay)
	assert.Equal(t, "github", cfg.Preview.HighlightStyle)
	assert.Equal(t, 3, cfg.Preview.Workers)
}

func TestUnsetFlagsKeepFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("use_trash: false\n"), 0o644))

	flags := pflag.NewFlagSet("mill", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	v := New()
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.False(t, cfg.UseTrash)
}

func TestMissingFileIsIgnored(t *testing.T) {
	v := New()
	require.NoError(t, ReadFile(v, filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preview: [unclosed"), 0o644))
	assert.Error(t, ReadFile(New(), path))
}

func TestRejectsNonPositiveCache(t *testing.T) {
	v := New()
	v.Set("preview.cache_bytes", 0)
	_, err := Load(v)
	assert.Error(t, err)
}

func TestYAMLDump(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)
	out, err := cfg.YAML()
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	preview, ok := back["preview"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "250ms", preview["prefetch_delay"])
	assert.Equal(t, true, back["use_trash"])
}
