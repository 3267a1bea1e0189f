package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

func sampleRecords() []entity.FieldRecord {
	return []entity.FieldRecord{
		entity.NewFieldRecord(
			entity.Field{Label: "Invoice No", Value: "INV-001"},
			entity.Field{Label: "Date", Value: "12/05/2024"},
			entity.Field{Label: "Total Amount", Value: "5000"},
		),
		entity.NewFieldRecord(
			entity.Field{Label: "Invoice No", Value: "INV-002"},
			entity.Field{Label: "Party Name", Value: "Acme, Ltd"},
		),
		entity.NewFieldRecord(),
	}
}

func TestRenderText(t *testing.T) {
	got := string(RenderText(sampleRecords()))
	want := "\n--- Document 1 ---\n" +
		"Invoice No: INV-001\nDate: 12/05/2024\nTotal Amount: 5000\n" +
		"\n--- Document 2 ---\n" +
		"Invoice No: INV-002\nParty Name: Acme, Ltd\n" +
		"\n--- Document 3 ---\n"
	assert.Equal(t, want, got)
	assert.Empty(t, RenderText(nil))
}

func TestHeaders_FirstSeenOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"Invoice No", "Date", "Total Amount", "Party Name"},
		Headers(sampleRecords()),
	)
}

func TestRenderDelimited(t *testing.T) {
	data, err := RenderDelimited(sampleRecords())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Invoice No", "Date", "Total Amount", "Party Name"}, rows[0])
	assert.Equal(t, []string{"INV-001", "12/05/2024", "5000", ""}, rows[1])
	assert.Equal(t, []string{"INV-002", "", "", "Acme, Ltd"}, rows[2])
	assert.Equal(t, []string{"", "", "", ""}, rows[3])

	empty, err := RenderDelimited([]entity.FieldRecord{entity.NewFieldRecord()})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRenderSpreadsheet(t *testing.T) {
	data, err := RenderSpreadsheet(sampleRecords())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, []string{"Invoice No", "Date", "Total Amount", "Party Name"}, rows[0])
	assert.Equal(t, []string{"INV-001", "12/05/2024", "5000"}, rows[1])

	v, err := f.GetCellValue(sheetName, "D3")
	require.NoError(t, err)
	assert.Equal(t, "Acme, Ltd", v)
	v, err = f.GetCellValue(sheetName, "B3")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRenderIsDeterministic(t *testing.T) {
	recs := sampleRecords()

	a, err := RenderSpreadsheet(recs)
	require.NoError(t, err)
	b, err := RenderSpreadsheet(recs)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "xlsx differs between runs")

	c1, err := RenderDelimited(recs)
	require.NoError(t, err)
	c2, err := RenderDelimited(recs)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	assert.Equal(t, RenderText(recs), RenderText(recs))
}

func TestService_ExportTwiceIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, nil)
	ctx := common.WithBatchID(context.Background(), "b1")

	require.NoError(t, s.Export(ctx, sampleRecords()))
	first := map[Kind][]byte{}
	for _, k := range Kinds() {
		data, _, err := s.ReadAll(string(k))
		require.NoError(t, err)
		first[k] = data
	}

	require.NoError(t, s.Export(ctx, sampleRecords()))
	for _, k := range Kinds() {
		data, _, err := s.ReadAll(string(k))
		require.NoError(t, err)
		assert.Equal(t, first[k], data, "kind %s", k)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"output.txt", "output.xlsx", "output.csv"}, names)
}

func TestService_ExportOverwritesPreviousBatch(t *testing.T) {
	s := NewService(t.TempDir(), nil)
	ctx := context.Background()

	require.NoError(t, s.Export(ctx, sampleRecords()))
	next := []entity.FieldRecord{entity.NewFieldRecord(entity.Field{Label: "Name", Value: "Jane Roe"})}
	require.NoError(t, s.Export(ctx, next))

	data, art, err := s.ReadAll("txt")
	require.NoError(t, err)
	assert.Equal(t, KindText, art.Kind)
	assert.Equal(t, "\n--- Document 1 ---\nName: Jane Roe\n", string(data))
}

func readSet(t *testing.T, s *Service) map[Kind][]byte {
	t.Helper()
	out := map[Kind][]byte{}
	for _, k := range Kinds() {
		data, _, err := s.ReadAll(string(k))
		require.NoError(t, err)
		out[k] = data
	}
	return out
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestService_FailedReplaceKeepsPreviousSet(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, nil)
	require.NoError(t, s.Export(context.Background(), sampleRecords()))
	before := readSet(t, s)

	s.rename = func(oldpath, newpath string) error {
		if filepath.Base(newpath) == "output.csv" && strings.HasSuffix(oldpath, ".tmp") {
			return errors.New("device busy")
		}
		return os.Rename(oldpath, newpath)
	}
	next := []entity.FieldRecord{entity.NewFieldRecord(entity.Field{Label: "Invoice No", Value: "NEW-2"})}
	err := s.Export(context.Background(), next)
	require.ErrorContains(t, err, "device busy")

	assert.Equal(t, before, readSet(t, s))
	assert.ElementsMatch(t, []string{"output.txt", "output.xlsx", "output.csv"}, dirNames(t, dir))
}

func TestService_BlockedTargetLeavesPreviousSet(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, nil)
	require.NoError(t, s.Export(context.Background(), sampleRecords()))
	text, _, err := s.ReadAll("txt")
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "output.csv")
	require.NoError(t, os.Remove(csvPath))
	require.NoError(t, os.MkdirAll(filepath.Join(csvPath, "inner"), 0o755))

	next := []entity.FieldRecord{entity.NewFieldRecord(entity.Field{Label: "Invoice No", Value: "NEW-2"})}
	require.Error(t, s.Export(context.Background(), next))

	after, _, err := s.ReadAll("txt")
	require.NoError(t, err)
	assert.Equal(t, text, after)
	assert.ElementsMatch(t, []string{"output.txt", "output.xlsx", "output.csv"}, dirNames(t, dir))
}

func TestService_FailedRollbackStopsServing(t *testing.T) {
	s := NewService(t.TempDir(), nil)
	require.NoError(t, s.Export(context.Background(), sampleRecords()))

	s.rename = func(oldpath, newpath string) error {
		if filepath.Base(newpath) == "output.csv" || strings.HasSuffix(oldpath, ".bak") {
			return errors.New("device busy")
		}
		return os.Rename(oldpath, newpath)
	}
	err := s.Export(context.Background(), sampleRecords())
	require.ErrorContains(t, err, "rollback failed")

	_, _, err = s.Open("txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_OpenBeforeExport(t *testing.T) {
	s := NewService(t.TempDir(), nil)

	_, _, err := s.Open("csv")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_OpenUnknownKind(t *testing.T) {
	s := NewService(t.TempDir(), nil)
	require.NoError(t, s.Export(context.Background(), sampleRecords()))

	_, _, err := s.Open("pdf")
	assert.ErrorIs(t, err, common.ErrUnknownExportKind)
}

func TestService_ExportFailsOnUnwritableDir(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewService(filepath.Join(blocker, "exports"), nil)
	require.Error(t, s.Export(context.Background(), sampleRecords()))

	_, _, err := s.Open("text")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"text": KindText, "txt": KindText, "TXT": KindText,
		"spreadsheet": KindSpreadsheet, "excel": KindSpreadsheet, "xlsx": KindSpreadsheet,
		"delimited": KindDelimited, "csv": KindDelimited,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("docx")
	assert.ErrorIs(t, err, common.ErrUnknownExportKind)
}
