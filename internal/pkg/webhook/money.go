package webhook

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ISO 4217 currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"MGA": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "JOD": 3, "KWD": 3, "OMR": 3, "TND": 3,
}

// CurrencyExponent returns the number of minor-unit digits of a currency.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// MinorToMajor converts an integer minor-unit amount (cents) into currency units.
func MinorToMajor(minor decimal.Decimal, currency string) decimal.Decimal {
	return minor.Shift(-CurrencyExponent(currency))
}

func normalizeCurrency(code, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return fallback
	}
	return code
}
