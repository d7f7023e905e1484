package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := New("")
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd, v)

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, Default().PartType, cfg.PartType)
	require.Equal(t, Default().EngineType, cfg.EngineType)
	require.Equal(t, []string{"data"}, cfg.DataPaths)
	require.Equal(t, []int{4, 2, 1}, cfg.NumThreadsPerPriority)
	require.True(t, cfg.EnableVertexCache)
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	v := New("")
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd, v)
	require.NoError(t, cmd.PersistentFlags().Set("part-type", "simple"))
	require.NoError(t, cmd.PersistentFlags().Set("num-threads-per-priority", "8:4:2"))
	require.NoError(t, cmd.PersistentFlags().Set("data-paths", "/a,/b,/c"))

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "simple", cfg.PartType)
	require.Equal(t, []int{8, 4, 2}, cfg.NumThreadsPerPriority)
	require.Equal(t, []string{"/a", "/b", "/c"}, cfg.DataPaths)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nebulastore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine_type: badger\nconn_timeout_ms: 5000\n"), 0o644))

	v := New(path)
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd, v)

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "badger", cfg.EngineType)
	require.Equal(t, 5000, cfg.ConnTimeoutMS)
}

func TestLoadRejectsUnknownPartType(t *testing.T) {
	v := New("")
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd, v)
	require.NoError(t, cmd.PersistentFlags().Set("part-type", "bogus"))

	_, err := Load(v)
	require.Error(t, err)
}

func TestKnobTableCoversSpecNames(t *testing.T) {
	want := []string{
		"data_paths", "part_type", "engine_type", "num_worker_threads",
		"num_threads_per_priority", "conn_timeout_ms", "accept_partial_success",
		"enable_vertex_cache", "enable_async_gc",
	}
	got := make(map[string]Mutability, len(Knobs))
	for _, k := range Knobs {
		got[k.Name] = k.Mutability
	}
	for _, name := range want {
		_, ok := got[name]
		require.True(t, ok, "missing knob %q", name)
	}
}
