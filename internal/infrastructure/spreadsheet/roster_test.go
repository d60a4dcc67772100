package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/securevote-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseRoster(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{" Voter_ID ", "NAME", "Email", "phone"},
		{"S1001", "Asha", "asha@campus.edu", "+911234567890"},
		{"S1002", " Ravi ", "ravi@campus.edu"},
		{"", "Nobody", "x@campus.edu"},
		{"nan", "Nobody", "y@campus.edu"},
	})

	r, err := ParseRoster(buf)
	require.NoError(t, err)
	require.Len(t, r.Voters, 2)
	assert.Equal(t, 2, r.Skipped)

	assert.Equal(t, "S1001", r.Voters[0].VoterID)
	require.NotNil(t, r.Voters[0].Phone)
	assert.Equal(t, "+911234567890", *r.Voters[0].Phone)

	assert.Equal(t, "Ravi", r.Voters[1].Name)
	assert.Nil(t, r.Voters[1].Phone)
	assert.False(t, r.Voters[1].IsRegistered)
}

func TestParseRoster_MissingColumn(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"voter_id", "name"},
		{"S1", "A"},
	})
	_, err := ParseRoster(buf)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestParseRoster_NotAWorkbook(t *testing.T) {
	_, err := ParseRoster(bytes.NewBufferString("voter_id,name,email\n"))
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
