package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	data := Dataset{Headers: []string{"Group", "Day", "Discipline"}}
	data.Append("ИВТ-21", "Monday", "Algebra, linear")
	data.Append("ИВТ-22", "Tuesday")
	return data
}

func TestDatasetAppendPadsMissingValues(t *testing.T) {
	data := sampleDataset()
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"ИВТ-22", "Tuesday", ""}, data.Record(1))
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Group,Day,Discipline", lines[0])
	assert.Equal(t, `ИВТ-21,Monday,"Algebra, linear"`, lines[1])
}

func TestCSVExporterOptions(t *testing.T) {
	out, err := NewCSVExporter(WithDelimiter(';'), WithBOM()).Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Contains(t, string(out), "ИВТ-21;Monday;Algebra, linear")
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "grid")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Faculty", "Shift", "Group", "Day", "Hour", "Week", "Discipline"}}
	for i := 0; i < 80; i++ {
		data.Append("Engineering", "morning", "G-1", "Monday", "08:30-09:50", "every", "Physics")
	}
	out, err := NewPDFExporter().Render(data, "Timetable")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	long := strings.Repeat("x", 50)
	got := truncate(long, 20)
	assert.Equal(t, 12, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
