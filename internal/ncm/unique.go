package ncm

// UniqueCodes groups rows by the normalized value of codeColumn and keeps the first row
// seen for each code, so downstream validation and prompt text run once per distinct code.
// Rows whose code cell is blank are skipped.
func UniqueCodes[R ~map[string]string](rows []R, codeColumn string) map[string]R {
	out := make(map[string]R)
	for _, row := range rows {
		code := Normalize(row[codeColumn])
		if code == "" {
			continue
		}
		if _, seen := out[code]; !seen {
			out[code] = row
		}
	}
	return out
}
