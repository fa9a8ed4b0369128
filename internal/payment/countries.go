package payment

import "strings"

// FallbackCountryCode is used when a country name is not in the table.
const FallbackCountryCode = "US"

var countryCodes = map[string]string{
	"united states":            "US",
	"united states of america": "US",
	"usa":                      "US",
	"canada":                   "CA",
	"mexico":                   "MX",
	"united kingdom":           "GB",
	"great britain":            "GB",
	"uk":                       "GB",
	"ireland":                  "IE",
	"france":                   "FR",
	"germany":                  "DE",
	"spain":                    "ES",
	"portugal":                 "PT",
	"italy":                    "IT",
	"netherlands":              "NL",
	"belgium":                  "BE",
	"switzerland":              "CH",
	"austria":                  "AT",
	"sweden":                   "SE",
	"norway":                   "NO",
	"denmark":                  "DK",
	"finland":                  "FI",
	"poland":                   "PL",
	"australia":                "AU",
	"new zealand":              "NZ",
	"japan":                    "JP",
	"china":                    "CN",
	"south korea":              "KR",
	"india":                    "IN",
	"singapore":                "SG",
	"indonesia":                "ID",
	"malaysia":                 "MY",
	"philippines":              "PH",
	"vietnam":                  "VN",
	"thailand":                 "TH",
	"brazil":                   "BR",
	"argentina":                "AR",
	"chile":                    "CL",
	"colombia":                 "CO",
	"south africa":             "ZA",
	"nigeria":                  "NG",
	"egypt":                    "EG",
	"united arab emirates":     "AE",
	"israel":                   "IL",
	"turkey":                   "TR",
}

// CountryCode maps a free-text country name to its ISO 3166-1 alpha-2 code.
func CountryCode(name string) string {
	if code, ok := countryCodes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return code
	}
	return FallbackCountryCode
}
