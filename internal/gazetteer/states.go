package gazetteer

import "strconv"

// zipRange assigns a contiguous block of 5-digit ZIP codes to a state.
type zipRange struct {
	lo, hi int
	state  string
}

// zipRanges is the USPS state allocation table. ZCTAs are not strictly
// state-nested, but the prefix allocation is stable enough for tile
// filtering; exceptions are listed after the main blocks.
var zipRanges = []zipRange{
	{600, 799, "PR"}, {800, 899, "VI"}, {900, 999, "PR"},
	{1000, 2799, "MA"}, {2800, 2999, "RI"}, {3000, 3899, "NH"},
	{3900, 4999, "ME"}, {5000, 5999, "VT"}, {6000, 6999, "CT"},
	{7000, 8999, "NJ"}, {10000, 14999, "NY"}, {15000, 19699, "PA"},
	{19700, 19999, "DE"}, {20000, 20599, "DC"}, {20600, 21999, "MD"},
	{22000, 24699, "VA"}, {24700, 26899, "WV"}, {27000, 28999, "NC"},
	{29000, 29999, "SC"}, {30000, 31999, "GA"}, {32000, 34999, "FL"},
	{35000, 36999, "AL"}, {37000, 38599, "TN"}, {38600, 39799, "MS"},
	{39800, 39999, "GA"}, {40000, 42799, "KY"}, {43000, 45999, "OH"},
	{46000, 47999, "IN"}, {48000, 49799, "MI"}, {50000, 52899, "IA"},
	{53000, 54999, "WI"}, {55000, 56799, "MN"}, {57000, 57799, "SD"},
	{58000, 58899, "ND"}, {59000, 59999, "MT"}, {60000, 62999, "IL"},
	{63000, 65899, "MO"}, {66000, 67999, "KS"}, {68000, 69399, "NE"},
	{70000, 71599, "LA"}, {71600, 72999, "AR"}, {73000, 74999, "OK"},
	{75000, 79999, "TX"}, {80000, 81699, "CO"}, {82000, 83199, "WY"},
	{83200, 83899, "ID"}, {84000, 84799, "UT"}, {85000, 86599, "AZ"},
	{87000, 88499, "NM"}, {88500, 88599, "TX"}, {89000, 89899, "NV"},
	{90000, 96199, "CA"}, {96700, 96899, "HI"}, {97000, 97999, "OR"},
	{98000, 99499, "WA"}, {99500, 99999, "AK"},
}

// zipExceptions covers codes allocated outside their state's block.
var zipExceptions = map[int]string{
	500:   "NY",
	501:   "NY",
	544:   "NY",
	6390:  "NY",
	73301: "TX",
	73344: "TX",
}

// StateForZip resolves a 5-digit ZIP code to its two-letter state code, or
// "" when the code falls outside every allocation.
func StateForZip(zip string) string {
	n, err := strconv.Atoi(normZip(zip))
	if err != nil {
		return ""
	}
	if state, ok := zipExceptions[n]; ok {
		return state
	}
	for _, r := range zipRanges {
		if n >= r.lo && n <= r.hi {
			return r.state
		}
	}
	return ""
}
