package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/user"
)

func readRows(t *testing.T, buf *bytes.Buffer, sheet string) [][]string {
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestUsers(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	users := []user.User{
		{ID: "u1", LastName: "Alaoui", FirstName: "Sara", Email: "sara@elimu.test", Role: user.RoleAdmin, Country: "Maroc", CreatedAt: created},
		{ID: "u2", LastName: "Benali", FirstName: "Omar", Email: "omar@elimu.test", Role: user.RoleStudent, Level: "Bac"},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, Users(buf, users))

	rows := readRows(t, buf, "Utilisateurs")
	require.Len(t, rows, 3)
	assert.Equal(t, usersHeader, rows[0])
	assert.Equal(t, []string{"u1", "Alaoui", "Sara", "sara@elimu.test", "admin"}, rows[1][:5])
	assert.Equal(t, "2024-03-01 09:30", rows[1][12])
	assert.Equal(t, "Bac", rows[2][6])
}

func TestMessages(t *testing.T) {
	msgs := []contact.Message{
		{ID: "m1", Name: "Omar", Email: "omar@elimu.test", Subject: null.StringFrom("Inscription"), Message: "Bonjour"},
		{ID: "m2", Name: "Sara", Email: "sara@elimu.test", Message: "Merci"},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, Messages(buf, msgs))

	rows := readRows(t, buf, "Messages")
	require.Len(t, rows, 3)
	assert.Equal(t, messagesHeader, rows[0])
	assert.Equal(t, "Inscription", rows[1][4])
	assert.Equal(t, "Merci", rows[2][5])
}

func TestEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, Messages(buf, nil))
	assert.Len(t, readRows(t, buf, "Messages"), 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "users_2024-03-01.xlsx", Filename("Users", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}
