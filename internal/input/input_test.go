package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

func TestParseDelimitedUTF8(t *testing.T) {
	t.Parallel()

	data := []byte("\xef\xbb\xbfBusiness Name,Website,City\nAcme, acme.example ,Springfield\n,,\n\"Bolt, Inc\",,Shelbyville\n")
	table, err := ParseDelimited(data)
	require.NoError(t, err)
	require.Equal(t, "utf-8", table.Encoding)
	require.Equal(t, []string{"Business Name", "Website", "City"}, table.Headers)
	require.Equal(t, [][]string{
		{"Acme", "acme.example", "Springfield"},
		{"Bolt, Inc", "", "Shelbyville"},
	}, table.Rows)
}

func TestParseDelimitedFallsBackToWindows1252(t *testing.T) {
	t.Parallel()

	table, err := ParseDelimited([]byte("name;town\nCaf\xe9 Bleu;Montr\xe9al\n"))
	require.NoError(t, err)
	require.Equal(t, "windows-1252", table.Encoding)
	require.Equal(t, []string{"name", "town"}, table.Headers)
	require.Equal(t, [][]string{{"Café Bleu", "Montréal"}}, table.Rows)
}

func TestParseDelimitedSquaresRows(t *testing.T) {
	t.Parallel()

	table, err := ParseDelimited([]byte("Name\tName\t\nA\nB\tx\ty\tz\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Name_2", "column_3"}, table.Headers)
	require.Equal(t, [][]string{{"A", "", ""}, {"B", "x", "y"}}, table.Rows)
}

func TestParseDelimitedEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseDelimited(nil)
	require.Error(t, err)
}

func TestLoadCSVFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	require.NoError(t, os.WriteFile(path, []byte("Company,URL\nAcme,acme.example\n"), 0o600))
	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
}

func TestLoadExcel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Business Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Website"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Acme"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "acme.example"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "Bolt"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "xlsx", table.Encoding)
	require.Equal(t, []string{"Business Name", "Website"}, table.Headers)
	require.Equal(t, [][]string{{"Acme", "acme.example"}, {"Bolt", ""}}, table.Rows)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load("businesses.pdf")
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestDetectColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		want    audit.ColumnMapping
	}{
		{
			name:    "exact",
			headers: []string{"Business Name", "Website", "City"},
			want:    audit.ColumnMapping{BusinessName: "Business Name", Website: "Website", City: "City"},
		},
		{
			name:    "specific pattern wins over earlier column",
			headers: []string{"Owner Name", "Company Name", "Homepage URL", "Town"},
			want:    audit.ColumnMapping{BusinessName: "Company Name", Website: "Homepage URL", City: "Town"},
		},
		{
			name:    "snake case and missing optional columns",
			headers: []string{"id", "business_name"},
			want:    audit.ColumnMapping{BusinessName: "business_name"},
		},
		{
			name:    "name column not reused",
			headers: []string{"Company", "Web Link", "Location"},
			want:    audit.ColumnMapping{BusinessName: "Company", Website: "Web Link", City: "Location"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectColumns(tc.headers)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := DetectColumns([]string{"phone", "email"})
	require.ErrorIs(t, err, ErrNoNameColumn)
}

func TestRecords(t *testing.T) {
	t.Parallel()

	table := Table{
		Headers: []string{"Business Name", "Website", "Notes"},
		Rows:    [][]string{{"Acme", "acme.example", "vip"}, {"Bolt", "", ""}},
	}
	recs := Records(table, audit.ColumnMapping{BusinessName: "Business Name", Website: "Website"})
	require.Len(t, recs, 2)
	require.Equal(t, 1, recs[0].Row)
	require.Equal(t, "Acme", recs[0].Name)
	require.Equal(t, "acme.example", recs[0].Website)
	notes, ok := recs[0].Get("Notes")
	require.True(t, ok)
	require.Equal(t, "vip", notes)
	require.Equal(t, 2, recs[1].Row)
	require.Empty(t, recs[1].City)
}
