package analysis

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Lllllllleong/ncmcompliance/internal/dataset"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

// Bar is one bar of a chart series keyed by normalized code.
type Bar struct {
	Code  string          `json:"code" yaml:"code"`
	Count int             `json:"count" yaml:"count"`
	Value decimal.Decimal `json:"value" yaml:"value"`
}

// TopByCount returns the n most frequent normalized codes.
func TopByCount(ds *dataset.Dataset, codeCol string, n int) []Bar {
	bars := aggregate(ds, codeCol, "")
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Count != bars[j].Count {
			return bars[i].Count > bars[j].Count
		}
		return bars[i].Code < bars[j].Code
	})
	return head(bars, n)
}

// TopByValue returns the n codes with the highest summed value. Cells that do not parse
// as amounts contribute zero.
func TopByValue(ds *dataset.Dataset, codeCol, valueCol string, n int) []Bar {
	bars := aggregate(ds, codeCol, valueCol)
	sort.Slice(bars, func(i, j int) bool {
		if c := bars[i].Value.Cmp(bars[j].Value); c != 0 {
			return c > 0
		}
		return bars[i].Code < bars[j].Code
	})
	return head(bars, n)
}

func aggregate(ds *dataset.Dataset, codeCol, valueCol string) []Bar {
	index := make(map[string]int)
	var bars []Bar
	for _, row := range ds.Rows {
		code := ncm.Normalize(row[codeCol])
		if code == "" {
			continue
		}
		i, ok := index[code]
		if !ok {
			i = len(bars)
			index[code] = i
			bars = append(bars, Bar{Code: code})
		}
		bars[i].Count++
		if valueCol != "" {
			if amount, ok := ParseAmount(row[valueCol]); ok {
				bars[i].Value = bars[i].Value.Add(amount)
			}
		}
	}
	return bars
}

func head(bars []Bar, n int) []Bar {
	if n > 0 && len(bars) > n {
		return bars[:n]
	}
	return bars
}

// ParseAmount reads a monetary cell in either pt-BR ("R$ 1.234,56") or en ("1,234.56")
// notation. When both separators appear the rightmost one is the decimal mark; a lone
// comma is a decimal mark; repeated marks of one kind are thousands separators.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return decimal.Zero, false
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
