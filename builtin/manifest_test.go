package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/gauntlet/pipeline"
	"github.com/teranos/gauntlet/plugin"
	"github.com/teranos/gauntlet/version"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestManifestCollector(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b_props.toml"), `
[[instance]]
name = "chair"
family = "prop"
`)
	writeFile(t, filepath.Join(dir, "a_models.toml"), `
[[instance]]
name = "hero"
family = "model"
families = ["rig"]
[instance.data]
frames = 24
artist = "marcus"

[[instance]]
name = "villain"
family = "model"
`)
	writeFile(t, filepath.Join(dir, "notes.md"), "not a manifest")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested", "ignored.toml"), `[[instance]]
name = "ignored"`)

	registry := plugin.NewRegistry(version.Framework, pipeline.DefaultCollectionBoundary, zaptest.NewLogger(t).Sugar())
	registry.RegisterPath(dir)
	require.NoError(t, registry.Register(ManifestCollector(registry.Paths)))

	result, err := registry.Process(context.Background(), ManifestCollectorID, "")
	require.NoError(t, err)
	require.True(t, result.Success, "%v", result.Error)

	instances := registry.Context().Instances()
	var names []string
	for _, inst := range instances {
		names = append(names, inst.Name())
	}
	assert.Equal(t, []string{"hero", "villain", "chair"}, names)

	hero := instances[0]
	assert.Equal(t, []string{"model", "rig"}, hero.Families())
	frames, _ := hero.Data("frames")
	assert.Equal(t, int64(24), frames)
	manifest, _ := hero.Data("manifest")
	assert.Equal(t, filepath.Join(dir, "a_models.toml"), manifest)
}

func TestManifestCollector_SingleFileAndMissingPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shot.toml")
	writeFile(t, file, `
[[instance]]
name = "sh010"
family = "shot"
`)

	c := pipeline.NewContext()
	collector := ManifestCollector(func() []string {
		return []string{filepath.Join(dir, "missing"), file}
	})
	collector.ID = ManifestCollectorID

	result, err := pipeline.NewRunner(pipeline.DefaultCollectionBoundary, nil).
		Run(context.Background(), collector, c, nil, pipeline.ModeProcess)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, c.Len())

	require.NotEmpty(t, result.Records)
	assert.Equal(t, pipeline.LevelWarning, result.Records[0].Level)
}

func TestManifestCollector_InvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_bad.toml"), `[[instance]
name = `)
	writeFile(t, filepath.Join(dir, "b_unnamed.toml"), `
[[instance]]
family = "prop"
`)
	writeFile(t, filepath.Join(dir, "c_good.toml"), `
[[instance]]
name = "ok"
`)

	c := pipeline.NewContext()
	collector := ManifestCollector(func() []string { return []string{dir} })

	result, err := pipeline.NewRunner(pipeline.DefaultCollectionBoundary, nil).
		Run(context.Background(), collector, c, nil, pipeline.ModeProcess)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Message, "2 manifest(s) could not be read")
	require.Equal(t, 1, c.Len(), "valid manifests are still collected")
	assert.Equal(t, "ok", c.Instances()[0].Name())
}
