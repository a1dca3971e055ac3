package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRowsMapsAliases(t *testing.T) {
	csvData := "E-Mail,FirstName,Surname,Zip\n" +
		"a@x.com,Ada,Lovelace,10115\n"

	rows, skipped, err := ReadRows(strings.NewReader(csvData), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@x.com", rows[0].Fields["email"])
	assert.Equal(t, "Ada", rows[0].Fields["first_name"])
	assert.Equal(t, "Lovelace", rows[0].Fields["last_name"])
	assert.Equal(t, "10115", rows[0].Fields["postal_code"])
}

func TestReadRowsCapturesCustomValues(t *testing.T) {
	csvData := "email,plan,unknown_col\n" +
		"a@x.com,gold,ignored\n"

	rows, _, err := ReadRows(strings.NewReader(csvData), []string{"plan"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "gold", rows[0].CustomValues["plan"])
	assert.NotContains(t, rows[0].Fields, "unknown_col")
}

func TestReadRowsSkipsRowsWithoutEmail(t *testing.T) {
	csvData := "email,first_name\n" +
		",Ghost\n" +
		"ok@x.com,Ada\n"

	rows, skipped, err := ReadRows(strings.NewReader(csvData), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, "ok@x.com", rows[0].Fields["email"])
}

func TestReadRowsRequiresEmailColumn(t *testing.T) {
	_, _, err := ReadRows(strings.NewReader("first_name,last_name\nAda,Lovelace\n"), nil)
	require.Error(t, err)
}

func TestReadRowsStripsBOM(t *testing.T) {
	csvData := "\xEF\xBB\xBFemail\na@x.com\n"
	rows, _, err := ReadRows(strings.NewReader(csvData), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestReadRowsEmptyStream(t *testing.T) {
	rows, skipped, err := ReadRows(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Equal(t, 0, skipped)
}
