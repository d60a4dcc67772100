// Package spreadsheet reads the eligible-voter roster from an .xlsx workbook.
package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/securevote-api/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Roster is the parsed content of the first sheet.
type Roster struct {
	Voters  []domain.EligibleVoter
	Skipped int // rows with a blank or "nan" voter_id
}

// ParseRoster reads the first sheet. The header row must contain voter_id, name
// and email (phone is optional); header matching ignores case and surrounding spaces.
func ParseRoster(r io.Reader) (*Roster, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %v: %w", err, domain.ErrBadRequest)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %v: %w", err, domain.ErrBadRequest)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty workbook: %w", domain.ErrBadRequest)
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"voter_id", "name", "email"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q (need voter_id, name, email; phone optional): %w", required, domain.ErrBadRequest)
		}
	}

	out := &Roster{}
	for _, row := range rows[1:] {
		cell := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		voterID := cell("voter_id")
		if voterID == "" || strings.EqualFold(voterID, "nan") {
			out.Skipped++
			continue
		}
		v := domain.EligibleVoter{
			VoterID: voterID,
			Name:    cell("name"),
			Email:   cell("email"),
		}
		if phone := cell("phone"); phone != "" && !strings.EqualFold(phone, "nan") {
			v.Phone = &phone
		}
		out.Voters = append(out.Voters, v)
	}
	return out, nil
}
