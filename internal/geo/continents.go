package geo

import "strings"

// Continent codes used by shipping zone locations.
const (
	ContinentAfrica       = "AF"
	ContinentAntarctica   = "AN"
	ContinentAsia         = "AS"
	ContinentEurope       = "EU"
	ContinentNorthAmerica = "NA"
	ContinentOceania      = "OC"
	ContinentSouthAmerica = "SA"
)

var continentCountries = map[string]string{
	ContinentAfrica: "AO BF BI BJ BW CD CF CG CI CM CV DJ DZ EG EH ER ET GA GH GM GN GQ GW KE KM LR LS LY MA MG ML MR MU MW MZ NA NE NG RE RW SC SD SH SL SN SO SS ST SZ TD TG TN TZ UG YT ZA ZM ZW",
	ContinentAntarctica: "AQ BV GS HM TF",
	ContinentAsia: "AE AF AM AZ BD BH BN BT CC CN CX GE HK ID IL IN IO IQ IR JO JP KG KH KP KR KW KZ LA LB LK MM MN MO MV MY NP OM PH PK PS QA SA SG SY TH TJ TL TM TR TW UZ VN YE",
	ContinentEurope: "AD AL AT AX BA BE BG BY CH CY CZ DE DK EE ES FI FO FR GB GG GI GR HR HU IE IM IS IT JE LI LT LU LV MC MD ME MK MT NL NO PL PT RO RS RU SE SI SJ SK SM UA VA XK",
	ContinentNorthAmerica: "AG AI AW BB BL BM BQ BS BZ CA CR CU CW DM DO GD GL GP GT HN HT JM KN KY LC MF MQ MS MX NI PA PM PR SV SX TC TT US VC VG VI",
	ContinentOceania: "AS AU CK FJ FM GU KI MH MP NC NF NR NU NZ PF PG PN PW SB TK TO TV UM VU WF WS",
	ContinentSouthAmerica: "AR BO BR CL CO EC FK GF GY PE PY SR UY VE",
}

var countryContinent = func() map[string]string {
	out := make(map[string]string)
	for continent, list := range continentCountries {
		for _, country := range strings.Fields(list) {
			out[country] = continent
		}
	}
	return out
}()

// ContinentForCountry returns the continent code of a country, or "" when
// the country is unknown.
func ContinentForCountry(country string) string {
	return countryContinent[strings.ToUpper(strings.TrimSpace(country))]
}

// CountriesInContinent lists the countries of a continent.
func CountriesInContinent(continent string) []string {
	return strings.Fields(continentCountries[strings.ToUpper(continent)])
}
