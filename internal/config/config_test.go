package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeMutating(t *testing.T) {
	assert.False(t, ModeDiscover.Mutating())
	assert.False(t, ModeDryRun.Mutating())
	assert.True(t, ModeWrite.Mutating())
	assert.False(t, ModeValidate.Mutating())
	assert.True(t, ModeRollback.Mutating())
	assert.False(t, ModeRollbackValidate.Mutating())
}

func TestModeRequiresRoot(t *testing.T) {
	assert.False(t, ModeDiscover.RequiresRoot())
	assert.False(t, ModeDryRun.RequiresRoot())
	assert.True(t, ModeWrite.RequiresRoot())
	assert.True(t, ModeValidate.RequiresRoot())
	assert.True(t, ModeRollback.RequiresRoot())
	assert.False(t, ModeRollbackValidate.RequiresRoot())
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "cmsh", cfg.CmshBin)
	assert.Equal(t, "root", cfg.SSH.User)
	assert.NotEmpty(t, cfg.SSH.KeyPath)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Site)
		wantErr string
	}{
		{"valid", func(*Site) {}, ""},
		{"empty cmsh", func(s *Site) { s.CmshBin = "" }, "cmshBin"},
		{"empty user", func(s *Site) { s.SSH.User = "" }, "ssh.user"},
		{"empty key", func(s *Site) { s.SSH.KeyPath = "" }, "ssh.keyPath"},
		{"empty restart", func(s *Site) { s.RestartCommand = "" }, "restartCommand"},
		{"restart without verb", func(s *Site) { s.RestartCommand = "systemctl restart nslcd" }, "exactly one %s"},
		{"restart with two verbs", func(s *Site) { s.RestartCommand = "run %s %s" }, "exactly one %s"},
		{"bad role", func(s *Site) { s.Paths = map[string]string{"nscd": "/x"} }, "unknown role"},
		{"good role", func(s *Site) { s.Paths = map[string]string{"nslcd": "/x"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certauth.yaml")
	content := `
cmshBin: /cm/local/apps/cmd/bin/cmsh
ssh:
  user: admin
  keyPath: /home/admin/.ssh/id_ed25519
paths:
  nslcd: /opt/etc/nslcd.conf
probeCommand: ldapsearch -Y EXTERNAL -H ldaps://localhost -b dc=cm,dc=cluster
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/cm/local/apps/cmd/bin/cmsh", cfg.CmshBin)
	assert.Equal(t, "admin", cfg.SSH.User)
	assert.Equal(t, "/home/admin/.ssh/id_ed25519", cfg.SSH.KeyPath)
	assert.Equal(t, "/opt/etc/nslcd.conf", cfg.Paths["nslcd"])
	assert.Contains(t, cfg.ProbeCommand, "ldapsearch")
	// unset fields keep defaults
	assert.Equal(t, "systemctl restart %s", cfg.RestartCommand)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cmshBin: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  nscd: /x\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
