// Package builtin provides stock plugins that ship with gauntlet.
package builtin

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/pipeline"
)

// ManifestCollectorID is the plugin ID of the manifest collector.
const ManifestCollectorID = "builtin.ManifestCollector"

// ManifestFile is a TOML file describing Instances:
//
//	[[instance]]
//	name = "hero"
//	family = "model"
//	families = ["rig"]
//	[instance.data]
//	frames = 24
type ManifestFile struct {
	Instances []ManifestInstance `toml:"instance"`
}

// ManifestInstance is one Instance entry of a manifest.
type ManifestInstance struct {
	Name     string         `toml:"name"`
	Family   string         `toml:"family"`
	Families []string       `toml:"families"`
	Data     map[string]any `toml:"data"`
}

// ManifestCollector returns a collection plugin that creates an Instance
// for every manifest entry found under paths. Each path may be a manifest
// file or a directory whose *.toml files are read in name order.
// Directories are not descended into.
//
// paths is called on every run, so it can be bound to Registry.Paths.
func ManifestCollector(paths func() []string) *pipeline.Plugin {
	return &pipeline.Plugin{
		ID:    ManifestCollectorID,
		Name:  "ManifestCollector",
		Order: pipeline.CollectorOrder,
		Process: func(ctx context.Context, target *pipeline.Target) error {
			return collect(ctx, target, paths())
		},
	}
}

func collect(ctx context.Context, target *pipeline.Target, paths []string) error {
	var failures []string
	var firstErr error

	for _, path := range paths {
		files, err := manifestFiles(path)
		if err != nil {
			target.Log.Warningf("skipping %s: %v", path, err)
			continue
		}

		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}

			created, err := loadManifest(target.Context, file)
			if err != nil {
				target.Log.Errorf("manifest %s: %v", file, err)
				failures = append(failures, file)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			target.Log.Infof("collected %d instances from %s", created, file)
		}
	}

	if firstErr != nil {
		return errors.WithDetailf(
			errors.Wrapf(firstErr, "%d manifest(s) could not be read", len(failures)),
			"failed manifests: %s", strings.Join(failures, ", "),
		)
	}
	return nil
}

func manifestFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func loadManifest(c *pipeline.Context, file string) (int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}

	var manifest ManifestFile
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return 0, errors.Wrap(err, "invalid TOML")
	}

	for i, entry := range manifest.Instances {
		if entry.Name == "" {
			return 0, errors.Newf("instance %d has no name", i)
		}
	}

	for _, entry := range manifest.Instances {
		inst := c.CreateInstance(entry.Name)
		for k, v := range entry.Data {
			inst.SetData(k, v)
		}
		if entry.Family != "" {
			inst.SetData("family", entry.Family)
		}
		if len(entry.Families) > 0 {
			inst.SetData("families", entry.Families)
		}
		inst.SetData("manifest", file)
	}
	return len(manifest.Instances), nil
}
