package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"/etc/nslcd.conf", "'/etc/nslcd.conf'"},
		{"with space", "'with space'"},
		{"o'brien", `'o'\''brien'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, shellQuote(tt.in))
	}
}

func TestQuoteGlob(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"/etc/a.conf.backup.*", "'/etc/a.conf.backup.'*"},
		{"/etc/plain", "'/etc/plain'"},
		{"/dir with space/x.*", "'/dir with space/x.'*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, quoteGlob(tt.in))
	}
}

func TestNewSSHRejectsBadKey(t *testing.T) {
	_, err := NewSSH("node002", "root", []byte("not a key"))
	require.Error(t, err)
}

func TestSSHTargetName(t *testing.T) {
	// A syntactically valid unencrypted test key is not worth generating
	// here; Name and Local do not depend on the key.
	target := &SSHTarget{host: "node002"}
	assert.Equal(t, "node002", target.Name())
	assert.False(t, target.Local())
	assert.NoError(t, target.Close())
}
