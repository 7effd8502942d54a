package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsage(t *testing.T) {
	u := newUsage(3<<30, 12<<30)
	assert.Equal(t, "3.0 / 12.0 GB", u.String())
	assert.Equal(t, 25.0, u.Percent())

	assert.Equal(t, 0.0, usage{used: 1}.Percent())
	assert.Equal(t, 1.23, toGB(1320702444))
}

func TestPyFloat(t *testing.T) {
	assert.Equal(t, "2.0", pyFloat(2))
	assert.Equal(t, "2.5", pyFloat(2.5))
	assert.Equal(t, "0.0", pyFloat(0))
	assert.Equal(t, "12.34", pyFloat(12.34))
}

func TestReadVersion(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content *string
		want    *string
	}{
		{"prefixed semver", strPtr("__version__: v0.2.4"), strPtr("v0.2.4")},
		{"bare semver", strPtr("1.2"), strPtr("v1.2.0")},
		{"last colon wins", strPtr("a:b: dev-build \n"), strPtr("dev-build")},
		{"empty file", strPtr(""), nil},
		{"blank after colon", strPtr("__version__:   "), nil},
		{"missing file", nil, nil},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "version", string(rune('a'+i)))
			if tt.content != nil {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0644))
			}
			assert.Equal(t, tt.want, readVersion(path))
		})
	}
	assert.Nil(t, readVersion(""))
}

func strPtr(s string) *string { return &s }
