package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"dcir/internal/driver"
)

const noManifestMessage = "no listings given and no " + driver.ManifestName + " found\nplease pass listing files explicitly, e.g.:\n  dcir graph path/to/listing.toml"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Project  projectSection  `toml:"project"`
	Build    buildConfig     `toml:"build"`
	Listings listingsSection `toml:"listings"`
}

type projectSection struct {
	Name string `toml:"name"`
}

type buildConfig struct {
	Jobs   int      `toml:"jobs"`
	Passes []string `toml:"passes"`
	Cache  *bool    `toml:"cache"`
}

type listingsSection struct {
	Files []string `toml:"files"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, driver.ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return projectConfig{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if !meta.IsDefined("project", "name") || strings.TrimSpace(cfg.Project.Name) == "" {
		return projectConfig{}, fmt.Errorf("%s: missing [project].name", path)
	}
	if cfg.Build.Jobs < 0 {
		return projectConfig{}, fmt.Errorf("%s: [build].jobs must not be negative", path)
	}
	return cfg, nil
}

// listingPaths resolves [listings].files relative to the manifest.
func (m *projectManifest) listingPaths() []string {
	out := make([]string, 0, len(m.Config.Listings.Files))
	for _, f := range m.Config.Listings.Files {
		p := filepath.FromSlash(strings.TrimSpace(f))
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Root, p)
		}
		out = append(out, p)
	}
	return out
}

func (m *projectManifest) cacheEnabled() bool {
	return m == nil || m.Config.Build.Cache == nil || *m.Config.Build.Cache
}
