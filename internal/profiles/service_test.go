package profiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndResolve(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - id: cartogua
    file_kind: tabular
    column_password: "Contraseña"
    column_invoice_number: "Factura"
    column_amount: "Monto"
  - id: distelsa
    column_invoice_number: "No. Documento"
    password_mode: one_per_row
`)

	store, err := Load(path, nil)
	require.NoError(t, err)

	p, err := store.Resolve(context.Background(), "cartogua")
	require.NoError(t, err)
	assert.Equal(t, "Factura", p.ColumnInvoiceNumber)
	// Unset password mode defaults to the single-column layout.
	assert.Equal(t, constants.PasswordModeSingleColumn, p.PasswordMode)

	p, err = store.Resolve(context.Background(), "distelsa")
	require.NoError(t, err)
	assert.Equal(t, constants.PasswordModeOnePerRow, p.PasswordMode)
}

func TestResolveUnknownTemplate(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - id: cartogua
    column_invoice_number: "Factura"
`)
	store, err := Load(path, nil)
	require.NoError(t, err)

	_, err = store.Resolve(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeConfiguration))
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadRejectsIncompleteProfiles(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - id: broken
    column_password: "Contraseña"
`)
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeConfiguration))
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeConfiguration))
}
