package registry

import (
	"os"
	"testing"

	"github.com/GriffinCanCode/modhost/internal/domain/module"
	"github.com/GriffinCanCode/modhost/internal/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageCatalogRoundTrip(t *testing.T) {
	s := NewStorage(t.TempDir())
	created, err := s.EnsureCatalog()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureCatalog()
	require.NoError(t, err)
	assert.False(t, created)

	records := []module.Record{{ID: "mod_1", Descriptor: descriptor(), LocalPath: "a.js", CatalogURL: catalogURL}}
	require.NoError(t, s.WriteCatalog(records))

	got, err := s.ReadCatalog()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Reader", got[0].Descriptor.Name)
	assert.Equal(t, scriptURL, got[0].Descriptor.ScriptURL)

	raw, err := os.ReadFile(s.CatalogPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sourceName": "Reader"`)
	assert.Contains(t, string(raw), `"metadataUrl"`)
}

func TestStorageLeavesNoTempFiles(t *testing.T) {
	s := NewStorage(t.TempDir())
	_, err := s.EnsureCatalog()
	require.NoError(t, err)
	require.NoError(t, s.WriteScript("a.js", []byte("x")))
	require.NoError(t, s.WriteCatalog(nil))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestStorageRejectsEscapingNames(t *testing.T) {
	s := NewStorage(t.TempDir())
	_, err := s.EnsureCatalog()
	require.NoError(t, err)

	assert.ErrorIs(t, s.WriteScript("../evil.js", []byte("x")), module.ErrMissingScriptPath)
	_, err = s.ReadScript("")
	assert.ErrorIs(t, err, module.ErrMissingScriptPath)
}

func TestStorageScriptValid(t *testing.T) {
	s := NewStorage(t.TempDir())
	_, err := s.EnsureCatalog()
	require.NoError(t, err)

	data := []byte("function search() {}")
	require.NoError(t, s.WriteScript("a.js", data))
	sum := utils.DefaultHasher().Checksum(data)

	assert.True(t, s.ScriptValid("a.js", sum))
	assert.True(t, s.ScriptValid("a.js", ""))
	assert.False(t, s.ScriptValid("a.js", utils.DefaultHasher().Checksum([]byte("other"))))
	assert.False(t, s.ScriptValid("missing.js", ""))
	assert.False(t, s.ScriptValid("", ""))

	require.NoError(t, s.DeleteScript("a.js"))
	require.NoError(t, s.DeleteScript("a.js"))
}
