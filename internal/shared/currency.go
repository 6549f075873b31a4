package shared

import (
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency upper-cases code and checks it against ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, err := currency.ParseISO(code); err != nil {
		return "", Validationf("unknown currency %q", code)
	}
	return code, nil
}
