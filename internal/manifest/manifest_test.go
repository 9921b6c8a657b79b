package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, File), []byte(content), 0644))
	return dir
}

func TestRead(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, `{
  "name": "@relicta/widget",
  "version": "1.2.3",
  "scripts": {"build": "tsc"}
}`)

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "@relicta/widget", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	assert.False(t, m.Private)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Read(t.TempDir())
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		dir := writeManifest(t, `{not json`)
		_, err := Read(dir)
		require.Error(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()
		dir := writeManifest(t, `{"version": "1.0.0"}`)
		_, err := Read(dir)
		require.Error(t, err)
	})
}

func TestWriteVersion(t *testing.T) {
	t.Parallel()

	content := `{
  "name": "widget",
  "version": "1.2.3",
  "dependencies": {
    "left-pad": "1.0.0"
  }
}`
	dir := writeManifest(t, content)

	require.NoError(t, WriteVersion(dir, "1.3.0"))

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", m.Version)

	// Formatting and unrelated fields untouched.
	data, err := os.ReadFile(filepath.Join(dir, File))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"left-pad": "1.0.0"`)
	assert.Contains(t, string(data), "  \"name\": \"widget\"")
}

func TestWriteVersionNoField(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, `{"name": "widget"}`)
	err := WriteVersion(dir, "1.0.0")
	require.Error(t, err)
}
