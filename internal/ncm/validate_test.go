package ncm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func petReference() *Reference {
	return NewReference([]ReferenceEntry{
		{DisplayForm: "2309.90.10", Category: "Alimentação", ExampleDescription: "Ração para cães"},
		{DisplayForm: "3305.10.00", Category: "Higiene", ExampleDescription: "Shampoo"},
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2309.90.10", "23099010"},
		{"  2309-90-10 ", "23099010"},
		{"23099010", "23099010"},
		{"2309.90.1X", "2309901X"},
		{"", ""},
		{"...--", ""},
		{"abc def", "abc def"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"2309.90.10", " 12-34.56-78 ", "x.y-z", "  ", "1234567X", ". 1 ."} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestValidateSeparatorInsensitive(t *testing.T) {
	ref := petReference()
	for _, code := range []string{"23099010", "33051000", "99999999", "12345678"} {
		plain := Validate(code, ref)
		dotted := Validate(code[:1]+"."+code[1:3]+"."+code[3:4]+"-"+code[4:], ref)
		assert.Equal(t, plain.IsValid, dotted.IsValid, code)
		assert.Equal(t, plain.Category, dotted.Category, code)
		assert.Equal(t, plain.NormalizedCode, dotted.NormalizedCode, code)
		assert.Equal(t, plain.Failure, dotted.Failure, code)
	}
}

func TestValidateInvalidFormat(t *testing.T) {
	ref := petReference()

	short := Validate("1234567", ref)
	assert.False(t, short.IsValid)
	assert.Equal(t, FailureInvalidFormat, short.Failure)
	assert.Contains(t, short.Reason, "exactly 8 digits")

	letter := Validate("1234567X", ref)
	assert.False(t, letter.IsValid)
	assert.Equal(t, FailureInvalidFormat, letter.Failure)
	assert.Contains(t, letter.Reason, "only digits")
	assert.NotEqual(t, short.Reason, letter.Reason)
}

func TestValidateReferenceHitAndMiss(t *testing.T) {
	ref := NewReference([]ReferenceEntry{{Code: "23099010", Category: "Alimentação", ExampleDescription: "Ração"}})

	hit := Validate("2309.90.10", ref)
	require.True(t, hit.IsValid)
	assert.Equal(t, "23099010", hit.NormalizedCode)
	assert.Equal(t, "Alimentação", hit.Category)
	assert.Equal(t, "Ração", hit.Description)
	assert.Equal(t, FailureNone, hit.Failure)

	miss := Validate("99999999", ref)
	assert.False(t, miss.IsValid)
	assert.Equal(t, FailureNotInReference, miss.Failure)
	assert.Equal(t, ReasonNotInReference, miss.Reason)
	assert.NotContains(t, miss.Reason, "format")
}

func TestValidateNilReference(t *testing.T) {
	res := Validate("23099010", nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, FailureNotInReference, res.Failure)
}

func TestUniqueCodes(t *testing.T) {
	rows := []map[string]string{
		{"NCM": "2309.90.10", "Produto": "Ração A"},
		{"NCM": "23099010", "Produto": "Ração B"},
		{"NCM": " ", "Produto": "Sem código"},
		{"NCM": "3305-10-00", "Produto": "Shampoo"},
	}
	got := UniqueCodes(rows, "NCM")
	require.Len(t, got, 2)
	assert.Equal(t, "Ração A", got["23099010"]["Produto"])
	assert.Equal(t, "Shampoo", got["33051000"]["Produto"])
}

func TestLoadReference(t *testing.T) {
	csvText := "\ufeffCódigo NCM,Categoria,Produto/Descrição Exemplo,Observações\n" +
		"2309.90.10,Alimentação,Ração para cães e gatos,N/A\n" +
		"3305.10.00,Higiene,Shampoo,Uso veterinário\n" +
		"bad,Higiene,Ignorado,\n" +
		"23099010,Duplicado,Ignorado,\n"

	ref, err := LoadReference(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Equal(t, 2, ref.Len())

	e, ok := ref.Lookup("23099010")
	require.True(t, ok)
	assert.Equal(t, "2309.90.10", e.DisplayForm)
	assert.Equal(t, "Alimentação", e.Category)
	assert.Empty(t, e.Notes)

	e, ok = ref.Lookup("33051000")
	require.True(t, ok)
	assert.Equal(t, "Uso veterinário", e.Notes)

	assert.Equal(t, []string{"Alimentação", "Higiene"}, ref.Categories())
}

func TestLoadReferenceMissingCodeColumn(t *testing.T) {
	_, err := LoadReference(strings.NewReader("Categoria,Descrição\nA,B\n"))
	assert.ErrorIs(t, err, ErrMissingCodeColumn)
}

func TestReferenceQueries(t *testing.T) {
	ref := DefaultReference()
	require.Greater(t, ref.Len(), 10)

	found := ref.SearchByDescription("SHAMPOO")
	require.Len(t, found, 1)
	assert.Equal(t, "33051000", found[0].Code)

	assert.NotEmpty(t, ref.ByCategory("medicamentos"))
	assert.Empty(t, ref.SearchByDescription("  "))

	prompt := ref.PromptText()
	assert.Contains(t, prompt, "23099010 (2309.90.10)")
	assert.Contains(t, prompt, "ALIMENTAÇÃO:")
}
