package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaderboardDataset() Dataset {
	return Dataset{
		Title:   "Weekly XP",
		Headers: []string{"rank", "name", "value"},
		Rows: []map[string]string{
			{"rank": "1", "name": "Ayu, P.", "value": "320"},
			{"rank": "2", "name": "Bima", "value": "150"},
		},
	}
}

func TestCSVExporterQuotesAndOrdersColumns(t *testing.T) {
	out, err := NewCSVExporter().Render(leaderboardDataset())
	require.NoError(t, err)
	assert.Equal(t, "rank,name,value\n1,\"Ayu, P.\",320\n2,Bima,150\n", string(out))
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(leaderboardDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf", r.Extension())

	r, err = ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, "csv", r.Extension())
	out, err := r.Render(leaderboardDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))

	_, err = ForFormat("xlsx")
	assert.Error(t, err)
}
