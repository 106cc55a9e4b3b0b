// Package export writes admin listings as xlsx workbooks.
package export

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/user"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	minColWidth = 12
	maxColWidth = 50
)

type sheet struct {
	title  string
	header []string
	rows   [][]string
}

var (
	usersHeader = []string{
		"ID", "Nom", "Prénom", "Email", "Rôle", "Date de naissance", "Niveau", "Option",
		"Établissement", "Téléphone", "Pays", "Ville", "Inscrit le",
	}
	messagesHeader = []string{"ID", "Nom", "Email", "Téléphone", "Objet", "Message", "Reçu le"}
)

// Users writes one row per user to w.
func Users(w io.Writer, users []user.User) error {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			u.ID, u.LastName, u.FirstName, u.Email, u.Role, u.BirthDate, u.Level, u.Track,
			u.School, u.Phone, u.Country, u.City, formatTime(u.CreatedAt),
		})
	}
	return write(w, sheet{title: "Utilisateurs", header: usersHeader, rows: rows})
}

// Messages writes one row per contact message to w.
func Messages(w io.Writer, msgs []contact.Message) error {
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{
			m.ID, m.Name, m.Email, m.Phone.String, m.Subject.String, m.Message, formatTime(m.CreatedAt),
		})
	}
	return write(w, sheet{title: "Messages", header: messagesHeader, rows: rows})
}

func write(w io.Writer, s sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", s.title); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}

	if err := f.SetSheetRow(s.title, "A1", &s.header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.WithStack(err)
		}
		if err = f.SetSheetRow(s.title, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	last, err := excelize.ColumnNumberToName(len(s.header))
	if err != nil {
		return errors.WithStack(err)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(s.title, "A1", last+"1", bold)
	}
	_ = f.AutoFilter(s.title, "A1:"+last+"1", nil)
	for c := range s.header {
		col, _ := excelize.ColumnNumberToName(c + 1)
		_ = f.SetColWidth(s.title, col, col, colWidth(s, c))
	}

	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// colWidth estimates a width from the header and the first rows.
func colWidth(s sheet, c int) float64 {
	longest := len([]rune(s.header[c]))
	for r := 0; r < len(s.rows) && r < 50; r++ {
		if l := len([]rune(s.rows[r][c])); l > longest {
			longest = l
		}
	}
	w := float64(longest) * 1.1
	if w < minColWidth {
		return minColWidth
	}
	if w > maxColWidth {
		return maxColWidth
	}
	return w
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// Filename returns "<name>_<date>.xlsx".
func Filename(name string, now time.Time) string {
	return strings.ToLower(name) + "_" + now.Format("2006-01-02") + ".xlsx"
}
