package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"protocolo", "status"},
		Rows: []map[string]string{
			{"protocolo": "GIPE-2025/0000011", "status": "Enviado para DRE"},
			{"status": "Em preenchimento; Diretor"},
		},
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Equal(t, "protocolo;status\nGIPE-2025/0000011;Enviado para DRE\n;\"Em preenchimento; Diretor\"\n", string(out[len(utf8BOM):]))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Document{
		Title:    "Comprovante",
		Subtitle: "Intercorrência GIPE-2025/0000011",
		Sections: []Section{{
			Heading: "Responsável",
			Entries: []Entry{{Label: "Nome", Value: "Maria José"}, {Label: "CPF", Value: ""}},
		}},
		Footer: "Documento gerado automaticamente.",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresSections(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{Title: "x"})
	assert.Error(t, err)
}
