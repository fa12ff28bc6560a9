package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
)

var (
	numberRe    = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	bedroomsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed(?:room)?s?|br\b|غرف(?:ة)?(?:\s*نوم)?|غرفة نوم)`)
	bathroomsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:bath(?:room)?s?|ba\b|حمام(?:ات)?|دورات? مياه)`)
	arabicNumRe = regexp.MustCompile(`[٠-٩]`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// arabicDigits maps eastern arabic numerals to their ascii forms so the
// numeric regexes work on either script.
var arabicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// arabicCities maps arabic city names to the english names used in the
// canonical model. Aqar and the registry expose arabic-only location text.
var arabicCities = map[string]string{
	"الرياض":         "Riyadh",
	"جدة":            "Jeddah",
	"الدمام":         "Dammam",
	"الخبر":          "Khobar",
	"مكة":            "Mecca",
	"مكة المكرمة":    "Mecca",
	"المدينة":        "Medina",
	"المدينة المنورة": "Medina",
	"الطائف":         "Taif",
	"تبوك":           "Tabuk",
	"أبها":           "Abha",
	"القصيم":         "Qassim",
	"الأحساء":        "Al Ahsa",
	"الجبيل":         "Jubail",
	"ينبع":           "Yanbu",
	"نجران":          "Najran",
	"حائل":           "Hail",
	"الخرج":          "Al Kharj",
}

// CleanText collapses whitespace and newlines into single spaces.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Number extracts the first numeric token from a string, tolerating commas
// and eastern arabic numerals. Returns 0 when nothing parses.
func Number(s string) float64 {
	if arabicNumRe.MatchString(s) {
		s = arabicDigits.Replace(s)
	}
	found := numberRe.FindString(s)
	if found == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(found, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// Price parses a free-form price string into the structured model. Currency
// is fixed to the local market currency; the period is inferred from
// month/year tokens in either language and defaults to a sale listing.
func Price(s string) model.Price {
	p := model.Price{
		Amount:   Number(s),
		Currency: "SAR",
		Period:   "sale",
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "month") || strings.Contains(lower, "monthly") ||
		strings.Contains(s, "شهري") || strings.Contains(s, "شهرياً"):
		p.Period = "monthly"
	case strings.Contains(lower, "year") || strings.Contains(lower, "annual") ||
		strings.Contains(s, "سنوي") || strings.Contains(s, "سنوياً"):
		p.Period = "yearly"
	}
	return p
}

// Area parses a free-form area string. The unit is inferred from sqft/sqm
// tokens and defaults to square meters, the unit used by all local sources.
func Area(s string) model.Size {
	size := model.Size{
		Area: Number(s),
		Unit: "sqm",
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "sqft") || strings.Contains(lower, "sq ft") ||
		strings.Contains(lower, "ft²") || strings.Contains(s, "قدم") {
		size.Unit = "sqft"
	}
	return size
}

// Bedrooms extracts a bedroom count from bilingual free text. Returns 0 when
// no count is present.
func Bedrooms(s string) int {
	return matchCount(bedroomsRe, s)
}

// Bathrooms extracts a bathroom count from bilingual free text.
func Bathrooms(s string) int {
	return matchCount(bathroomsRe, s)
}

func matchCount(re *regexp.Regexp, s string) int {
	if arabicNumRe.MatchString(s) {
		s = arabicDigits.Replace(s)
	}
	match := re.FindStringSubmatch(s)
	if len(match) < 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

// CityEN normalizes a city name to english. Arabic names go through the
// lookup table; unknown names are returned cleaned but otherwise untouched.
func CityEN(s string) string {
	s = CleanText(s)
	if en, ok := arabicCities[s]; ok {
		return en
	}
	return s
}
