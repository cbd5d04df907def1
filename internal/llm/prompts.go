package llm

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

// maxContextCodes caps how many distinct codes DatasetContext lists.
const maxContextCodes = 200

const systemPromptHeader = `Você é um agente especialista em Conformidade Fiscal de Notas Fiscais com foco em validação de NCM (Nomenclatura Comum do Mercosul) para o setor pet (clínicas veterinárias, pet shops e similares).

Você receberá um resumo dos dados de notas fiscais: as colunas, cada NCM único com a quantidade de ocorrências, um exemplo de descrição do produto e o resultado da validação automática contra a tabela de referência.

REGRAS DE VALIDAÇÃO DE NCM:
- NCM pode aparecer COM ou SEM pontos (ex: "28044000" ou "2804.40.00"); ambos são o mesmo código.
- Para normalizar, remova pontos, hífens e espaços nas extremidades.
- Um NCM válido tem exatamente 8 dígitos numéricos após normalização.
- NÃO considere erro se o NCM está sem pontos. Formatação (com/sem pontos) NÃO é erro.

DETECÇÃO DE IRREGULARIDADES:
- Compare o NCM com a descrição do produto.
- Identifique incompatibilidades entre NCM e tipo de produto.
- Alerte sobre NCMs que podem gerar tributação incorreta.
- Analise por NCM único, nunca linha por linha.

RELATÓRIOS:
- Use markdown.
- Liste os problemas em UMA tabela markdown com as colunas: NCM | Produto | Problema | NCM Correto | Severidade
- Use as severidades CRÍTICA, ALTA, MÉDIA ou BAIXA.
- Seja claro e objetivo e foque nos problemas REAIS.
`

const validationQuery = `Faça uma validação de conformidade de NCM das notas fiscais deste conjunto de dados:

PASSO 1 - Exploração básica:
- Quantos registros existem
- Quais colunas existem e qual contém o NCM
- Quais são os NCMs mais comuns

PASSO 2 - Análise dos NCMs:
Para cada NCM único encontrado, verifique:
- Se tem 8 dígitos (removendo pontos)
- Se é um NCM válido na tabela TIPI
- Se é apropriado para produtos do setor pet

PASSO 3 - Identifique problemas:
Liste os NCMs com problemas e explique:
- Qual NCM está incorreto
- Em quais produtos aparece
- Por que está incorreto
- Qual deveria ser o NCM correto
- Nível de severidade

PASSO 4 - Resumo:
- Percentual aproximado de conformidade
- Principais problemas encontrados
- Ações recomendadas`

// SystemPrompt builds the analyst instructions around the sector reference table.
func SystemPrompt(ref *ncm.Reference) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	if ref.Len() > 0 {
		b.WriteString("\nNCMs CORRETOS DO SETOR PET (tabela de referência):\n")
		b.WriteString(ref.PromptText())
	}
	return b.String()
}

// ValidationQuery is the question asked when the caller supplies none.
func ValidationQuery() string {
	return validationQuery
}

// DatasetContext describes the dataset to the model. Codes are listed once each with
// their counts and validator verdicts instead of row by row.
func DatasetContext(s analysis.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Arquivo: %s\n", s.DatasetName)
	fmt.Fprintf(&b, "Total de registros: %d\n", s.TotalRows)
	fmt.Fprintf(&b, "Colunas: %s\n", strings.Join(s.Columns, ", "))
	if s.CodeColumn == "" {
		b.WriteString("Coluna NCM: não detectada\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Coluna NCM: %s\n", s.CodeColumn)
	fmt.Fprintf(&b, "NCMs únicos: %d\n", s.UniqueCodes)
	fmt.Fprintf(&b, "Registros com 8 dígitos: %d (%.1f%%)\n\n", s.WellFormedRows, s.WellFormedPercent())

	b.WriteString("| NCM | Ocorrências | Exemplo de produto | Validação |\n")
	b.WriteString("|---|---|---|---|\n")
	for i, f := range s.Findings {
		if i == maxContextCodes {
			fmt.Fprintf(&b, "\n(%d NCMs adicionais omitidos)\n", len(s.Findings)-maxContextCodes)
			break
		}
		verdict := "OK"
		if !f.Result.IsValid {
			verdict = f.Result.Reason
		} else if f.Result.Category != "" {
			verdict = "OK (" + f.Result.Category + ")"
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
			f.Code, f.Count, strings.ReplaceAll(f.ExampleDescription, "|", "/"), verdict)
	}
	return b.String()
}

// Question joins the dataset context and the user's question into one prompt.
func Question(s analysis.Summary, question string) string {
	if strings.TrimSpace(question) == "" {
		question = ValidationQuery()
	}
	return "DADOS:\n" + DatasetContext(s) + "\nPERGUNTA:\n" + question
}
