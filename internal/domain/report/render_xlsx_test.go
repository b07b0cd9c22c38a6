package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func renderedRows(t *testing.T, doc Document) [][]string {
	t.Helper()
	content, err := RenderXLSX(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	return rows
}

func contains(rows [][]string, want ...string) bool {
	for _, r := range rows {
		if len(r) < len(want) {
			continue
		}
		match := true
		for i, w := range want {
			if r[i] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestRenderXLSX_Layout(t *testing.T) {
	rows := renderedRows(t, Compile(fullDetail(), testNow))
	require.NotEmpty(t, rows)

	assert.Equal(t, "Fiche Contrôle", rows[0][0])
	assert.True(t, contains(rows, "Code : R02-F101-FI", "Version : 01"))
	assert.True(t, contains(rows, "Date : 14/03/2025", "Page : 1/1"))
	assert.True(t, contains(rows, "INFORMATION SUR LE PATIENT"))
	assert.True(t, contains(rows, "Nom", "Martin"))
	assert.True(t, contains(rows, "Type de masque", "Narinaire"))
	assert.True(t, contains(rows, "Tubulures"))
	assert.True(t, contains(rows, "Vérifications de sécurité", "Tests effectués"))
	assert.True(t, contains(rows, "☑ Alarmes", "☑ Fuites"))

	last := rows[len(rows)-1]
	assert.Equal(t, []string{"Signature Technicien", "Signature Patient"}, last)
}

func TestRenderXLSX_OmittedSectionsAbsent(t *testing.T) {
	rows := renderedRows(t, Compile(bareDetail(), testNow))

	assert.False(t, contains(rows, "CONSOMMABLES UTILISÉS"))
	assert.False(t, contains(rows, "INFORMATION SUR LE PATIENT"))
	assert.True(t, contains(rows, "Signature Technicien", "Signature Patient"))
}
