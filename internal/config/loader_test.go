package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comp-lang/comp/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	cfg, resolved, err := Load(LoaderOptions{ConfigFlag: ""})
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.ModuleRoot)
	assert.Equal(t, "yaml", cfg.Output)

	sources := map[string]string{}
	for _, rv := range resolved {
		sources[rv.Key] = rv.Source
	}
	assert.Equal(t, "default", sources["output"])
}

func TestLoadFromFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	path := testutil.WriteFile(t, dir, "config.yaml", "moduleRoot: /srv/comp\noutput: text\n")

	cfg, resolved, err := Load(LoaderOptions{ConfigFlag: path})
	require.NoError(t, err)
	assert.Equal(t, "/srv/comp", cfg.ModuleRoot)
	assert.Equal(t, "text", cfg.Output)

	for _, rv := range resolved {
		if rv.Key == "output" {
			assert.Equal(t, "config", rv.Source)
		}
	}
}

func TestFlagOverridesFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	path := testutil.WriteFile(t, dir, "config.yaml", "moduleRoot: /srv/comp\n")

	cfg, resolved, err := Load(LoaderOptions{ConfigFlag: path, ModuleRootFlag: "/opt/other"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/other", cfg.ModuleRoot)

	for _, rv := range resolved {
		if rv.Key == "moduleRoot" {
			assert.Equal(t, "flag", rv.Source)
		}
	}
}

func TestInvalidOutputRejected(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	path := testutil.WriteFile(t, dir, "config.yaml", "output: xml\n")

	_, _, err := Load(LoaderOptions{ConfigFlag: path})
	assert.Error(t, err)
}

func TestExplicitMissingFileIsError(t *testing.T) {
	_, _, err := Load(LoaderOptions{ConfigFlag: "/nonexistent/config.yaml"})
	assert.Error(t, err)
}
