package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camonet/amrgold/internal/gold"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/silver", cfg.SilverDir)
	assert.Equal(t, "data/gold", cfg.GoldDir)
	assert.Equal(t, "refdata", cfg.RefdataDir)
	assert.Equal(t, gold.PolicyAny, cfg.AssociationPolicy())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AMRGOLD_SILVER_DIR", "/srv/silver")
	t.Setenv("AMRGOLD_ASSOCIATION_POLICY", "first")
	t.Setenv("AMRGOLD_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/silver", cfg.SilverDir)
	assert.Equal(t, gold.PolicyFirst, cfg.AssociationPolicy())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amrgold.yaml")
	content := `silver_dir: /data/silver
gold_dir: /data/gold
refdata_dir: /data/refdata
association_policy: first
references_file: /data/references.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/silver", cfg.SilverDir)
	assert.Equal(t, "/data/gold", cfg.GoldDir)
	assert.Equal(t, gold.PolicyFirst, cfg.AssociationPolicy())
	assert.Equal(t, "/data/references.yaml", cfg.ReferencesFile)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	t.Setenv("AMRGOLD_ASSOCIATION_POLICY", "latest")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Setenv("AMRGOLD_LOG_LEVEL", "loud")
	_, err := Load("")
	assert.Error(t, err)
}
