// Package export renders back-office and calendar downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/m3connect/portal/internal/models"
)

// UserColumns is the header row of the user export.
var UserColumns = []string{"Name", "Email", "Organization", "Type", "Country", "Role", "Status", "Created"}

// WriteUsersCSV writes profiles in back-office order. Fields are quoted as
// needed, and user-entered cells are defused so spreadsheets do not evaluate
// them as formulas.
func WriteUsersCSV(w io.Writer, profiles []models.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(UserColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range profiles {
		row := []string{
			safeCell(p.FullName()),
			safeCell(p.Email),
			safeCell(p.OrganizationName),
			safeCell(p.OrganizationType),
			safeCell(p.Country),
			string(p.Role),
			string(p.Status),
			p.CreatedAt.UTC().Format("2006-01-02"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// safeCell prefixes values a spreadsheet would read as a formula with a quote.
func safeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
