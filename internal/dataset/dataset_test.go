package dataset

import (
	"archive/zip"
	"bytes"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func zipOf(t *testing.T, files map[string][]byte) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestFromZipSemicolon(t *testing.T) {
	csvText := "NCM;Descrição do Produto;Valor Total\n" +
		"2309.90.10;Ração cães adultos;1.234,56\n" +
		"9503.00.10;Brinquedo mordedor;19,90\n" +
		"broken;line;with;too;many;fields\n"
	r := zipOf(t, map[string][]byte{"readme.txt": []byte("x"), "notas/NOTAS.CSV": []byte(csvText)})

	ds, err := FromZip(r, r.Size())
	require.NoError(t, err)
	assert.Equal(t, "notas/NOTAS.CSV", ds.Name)
	assert.Equal(t, ";", ds.Delimiter)
	assert.Equal(t, "UTF-8", ds.Encoding)
	assert.Equal(t, []string{"NCM", "Descrição do Produto", "Valor Total"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "Ração cães adultos", ds.Rows[0]["Descrição do Produto"])

	col, ok := ds.CodeColumn()
	require.True(t, ok)
	assert.Equal(t, "NCM", col)
	col, ok = ds.DescriptionColumn()
	require.True(t, ok)
	assert.Equal(t, "Descrição do Produto", col)
	col, ok = ds.ValueColumn()
	require.True(t, ok)
	assert.Equal(t, "Valor Total", col)
}

func TestFromZipErrors(t *testing.T) {
	empty := zipOf(t, map[string][]byte{})
	_, err := FromZip(empty, empty.Size())
	assert.ErrorIs(t, err, ErrEmptyArchive)

	noCSV := zipOf(t, map[string][]byte{"a.txt": []byte("hello")})
	_, err = FromZip(noCSV, noCSV.Size())
	assert.ErrorIs(t, err, ErrNoCSV)

	single := zipOf(t, map[string][]byte{"a.csv": []byte("onlyonecolumn\nvalue\n")})
	_, err = FromZip(single, single.Size())
	assert.ErrorIs(t, err, ErrUndetectedFormat)

	garbage := bytes.NewReader([]byte("not a zip"))
	_, err = FromZip(garbage, garbage.Size())
	assert.Error(t, err)
}

func TestFromCSVTabAndBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Codigo NCM\tProduto\n23099010\tRação\n")...)
	ds, err := FromCSV("x.csv", raw)
	require.NoError(t, err)
	assert.Equal(t, "\t", ds.Delimiter)
	assert.Equal(t, []string{"Codigo NCM", "Produto"}, ds.Columns)
	assert.Equal(t, "23099010", ds.Rows[0]["Codigo NCM"])
}

func TestDecodeLegacyCharset(t *testing.T) {
	text := "NCM,Produto,Observação\n" +
		"23099010,Ração para cães e gatos adultos,Não há observação\n" +
		"33051000,Shampoo neutro para cães,Aplicação em pelagem sensível\n"
	latin, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)
	require.False(t, utf8.ValidString(latin))

	decoded, enc, err := Decode([]byte(latin))
	require.NoError(t, err)
	assert.NotEqual(t, "UTF-8", enc)
	assert.True(t, utf8.ValidString(decoded))
	assert.Contains(t, decoded, "23099010,Ra")

	ds, err := FromCSV("legacy.csv", []byte(latin))
	require.NoError(t, err)
	assert.Equal(t, ",", ds.Delimiter)
	assert.Len(t, ds.Rows, 2)
}

func TestHeadAndToCSV(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"NCM", "Produto"},
		Rows:    []Row{{"NCM": "1", "Produto": "a,b"}, {"NCM": "2", "Produto": "c"}},
	}
	assert.Len(t, ds.Head(1), 1)
	assert.Len(t, ds.Head(10), 2)

	out, err := ds.ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "NCM,Produto\n1,\"a,b\"\n2,c\n", string(out))
}

func TestFromCSVShortAndLongLines(t *testing.T) {
	ds, err := FromCSV("x.csv", []byte("NCM,Descricao,Valor\n23099010,Racao,10\n42050000,Coleira\n99999999,Outro,\n"))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, Row{"NCM": "42050000", "Descricao": "Coleira", "Valor": ""}, ds.Rows[1])
	assert.Equal(t, "", ds.Rows[2]["Valor"])

	ds, err = FromCSV("x.csv", []byte("NCM,Descricao,Valor\n23099010,Racao,10\n42050000,Coleira,5,extra\n"))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "23099010", ds.Rows[0]["NCM"])
}
