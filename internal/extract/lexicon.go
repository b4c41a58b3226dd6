package extract

import (
	"regexp"
	"strings"
)

// Coord is a dictionary coordinate.
type Coord struct {
	Lat float64
	Lng float64
}

// Lexicon holds the language-specific lookup tables the heuristic
// sub-extractors operate on. Sub-extractors take the lexicon as an
// explicit parameter so each can be unit-tested in isolation.
type Lexicon struct {
	City          string
	Country       string
	CountryCode   string
	DefaultCenter Coord

	StreetKeywords       []string
	JunctionKeywords     []string
	NeighborhoodKeywords []string
	StudioKeywords       []string
	RoommateKeywords     []string
	FlexibleKeywords     []string
	ImmediateKeywords    []string

	// Months maps month names (full and abbreviated, all languages,
	// lowercase) to 1..12.
	Months map[string]int

	// FloorOrdinals maps named ordinals to floor numbers; ground = 0.
	FloorOrdinals map[string]int

	// Dictionary coordinates, keyed lowercase. Longest matching key wins.
	Streets       map[string]Coord
	Neighborhoods map[string]Coord
	Landmarks     map[string]Coord

	// Amenities maps a canonical amenity flag name to the keywords that
	// assert it.
	Amenities map[string][]string

	streetRe       *regexp.Regexp
	neighborhoodRe *regexp.Regexp
	hebrewRangeRe  *regexp.Regexp
	englishRangeRe *regexp.Regexp
	floorOrdinalRe *regexp.Regexp
}

// compile builds the regexes that depend on lexicon keyword tables.
func (l *Lexicon) compile() {
	name := `([\p{L}'"’\x60]+(?:\s+[\p{L}'"’\x60]+)*?)`
	l.streetRe = regexp.MustCompile(
		`(?i)(?:` + alternation(l.StreetKeywords) + `)\s+` + name +
			`(?:\s+(?:` + alternation(l.JunctionKeywords) + `)\s+` + name + `)?` +
			`(?:\s+(\d{1,3}))?(?:\s*[,.!?:;\n]|\s*$)`)
	l.neighborhoodRe = regexp.MustCompile(
		`(?i)(?:` + alternation(l.NeighborhoodKeywords) + `)\s+` + name +
			`(?:\s*[,.!?:;\n]|\s*$)`)

	months := monthAlternation(l.Months)
	l.hebrewRangeRe = regexp.MustCompile(
		`מ-?\s*(\d{1,2})\s+ב?(` + months + `)\s+(?:עד|ועד|ל)-?\s*(\d{1,2})\s+ב?(` + months + `)`)
	l.englishRangeRe = regexp.MustCompile(
		`(?i)\b(` + months + `)\.?\s+(\d{1,2})\s*(?:[-–—]|to|until)\s*(?:(` + months + `)\.?\s+)?(\d{1,2})\b`)

	ordinals := make([]string, 0, len(l.FloorOrdinals))
	for word := range l.FloorOrdinals {
		ordinals = append(ordinals, word)
	}
	l.floorOrdinalRe = regexp.MustCompile(
		`(?i)(?:קומה|קומת)\s+(` + alternation(ordinals) + `)|(` + alternation(ordinals) + `)\s+floor`)
}

func alternation(words []string) string {
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		escaped = append(escaped, regexp.QuoteMeta(w))
	}
	// Longer alternatives first so they win over their own prefixes.
	sortByLengthDesc(escaped)
	return strings.Join(escaped, "|")
}

func monthAlternation(months map[string]int) string {
	names := make([]string, 0, len(months))
	for name := range months {
		names = append(names, regexp.QuoteMeta(name))
	}
	sortByLengthDesc(names)
	return strings.Join(names, "|")
}

func sortByLengthDesc(words []string) {
	for i := 1; i < len(words); i++ {
		for j := i; j > 0; j-- {
			if len(words[j]) > len(words[j-1]) ||
				(len(words[j]) == len(words[j-1]) && words[j] < words[j-1]) {
				words[j], words[j-1] = words[j-1], words[j]
			}
		}
	}
}

// TelAvivLexicon is the production lookup table: Hebrew-first with the
// English constructions that show up in the same groups. The dictionary
// is seeded with the streets, neighborhoods and landmarks that dominate
// the scraped groups; unknown addresses fall through to the geocoder.
func TelAvivLexicon() *Lexicon {
	l := &Lexicon{
		City:          "Tel Aviv",
		Country:       "Israel",
		CountryCode:   "IL",
		DefaultCenter: Coord{Lat: 32.0853, Lng: 34.7818},

		StreetKeywords:       []string{"רחוב", "רח'", "ברחוב", "בשדרות", "שדרות", "שד'"},
		JunctionKeywords:     []string{"פינת", "corner of", "corner"},
		NeighborhoodKeywords: []string{"שכונת", "בשכונת", "neighborhood", "neighbourhood"},
		StudioKeywords:       []string{"סטודיו", "studio"},
		RoommateKeywords:     []string{"שותף", "שותפה", "שותפים", "roommate", "flatmate"},
		FlexibleKeywords:     []string{"גמיש", "גמישות", "flexible"},
		ImmediateKeywords:    []string{"מיידי", "מיידית", "כניסה מיידית", "immediate", "available now"},

		Months: map[string]int{
			"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3,
			"april": 4, "apr": 4, "may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7,
			"august": 8, "aug": 8, "september": 9, "sep": 9, "sept": 9,
			"october": 10, "oct": 10, "november": 11, "nov": 11, "december": 12, "dec": 12,
			"ינואר": 1, "פברואר": 2, "מרץ": 3, "מרס": 3, "אפריל": 4, "מאי": 5,
			"יוני": 6, "יולי": 7, "אוגוסט": 8, "ספטמבר": 9, "אוקטובר": 10,
			"נובמבר": 11, "דצמבר": 12,
		},

		FloorOrdinals: map[string]int{
			"קרקע": 0, "ראשונה": 1, "שנייה": 2, "שניה": 2, "שלישית": 3,
			"רביעית": 4, "חמישית": 5, "שישית": 6, "שביעית": 7, "שמינית": 8,
			"תשיעית": 9, "עשירית": 10,
			"ground": 0, "first": 1, "second": 2, "third": 3, "fourth": 4,
			"fifth": 5, "sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
		},

		Streets: map[string]Coord{
			"rothschild":           {32.0636, 34.7748},
			"rothschild boulevard": {32.0636, 34.7748},
			"רוטשילד":              {32.0636, 34.7748},
			"שדרות רוטשילד":        {32.0636, 34.7748},
			"dizengoff":            {32.0781, 34.7740},
			"דיזנגוף":              {32.0781, 34.7740},
			"allenby":              {32.0668, 34.7701},
			"אלנבי":                {32.0668, 34.7701},
			"ben yehuda":           {32.0809, 34.7690},
			"בן יהודה":             {32.0809, 34.7690},
			"king george":          {32.0719, 34.7725},
			"המלך ג'ורג'":          {32.0719, 34.7725},
			"ibn gabirol":          {32.0804, 34.7816},
			"אבן גבירול":           {32.0804, 34.7816},
			"bograshov":            {32.0759, 34.7687},
			"בוגרשוב":              {32.0759, 34.7687},
			"herzl":                {32.0573, 34.7700},
			"הרצל":                 {32.0573, 34.7700},
			"hayarkon":             {32.0837, 34.7672},
			"הירקון":               {32.0837, 34.7672},
			"nahalat binyamin":     {32.0640, 34.7700},
			"נחלת בנימין":          {32.0640, 34.7700},
		},

		Neighborhoods: map[string]Coord{
			"florentin":        {32.0565, 34.7700},
			"פלורנטין":         {32.0565, 34.7700},
			"neve tzedek":      {32.0605, 34.7640},
			"נווה צדק":         {32.0605, 34.7640},
			"old north":        {32.0900, 34.7750},
			"הצפון הישן":       {32.0900, 34.7750},
			"kerem hateimanim": {32.0660, 34.7650},
			"כרם התימנים":      {32.0660, 34.7650},
			"lev hair":         {32.0700, 34.7730},
			"לב העיר":          {32.0700, 34.7730},
			"jaffa":            {32.0530, 34.7520},
			"יפו":              {32.0530, 34.7520},
			"ramat aviv":       {32.1133, 34.7960},
			"רמת אביב":         {32.1133, 34.7960},
			"shapira":          {32.0510, 34.7740},
			"שפירא":            {32.0510, 34.7740},
		},

		Landmarks: map[string]Coord{
			"habima":           {32.0727, 34.7793},
			"הבימה":            {32.0727, 34.7793},
			"dizengoff center": {32.0751, 34.7752},
			"דיזנגוף סנטר":     {32.0751, 34.7752},
			"carmel market":    {32.0683, 34.7683},
			"שוק הכרמל":        {32.0683, 34.7683},
			"rabin square":     {32.0807, 34.7806},
			"כיכר רבין":        {32.0807, 34.7806},
			"sarona":           {32.0719, 34.7864},
			"שרונה":            {32.0719, 34.7864},
			"hayarkon park":    {32.1012, 34.8063},
			"פארק הירקון":      {32.1012, 34.8063},
		},

		Amenities: map[string][]string{
			"furnished":        {"מרוהטת", "מרוהט", "furnished"},
			"balcony":          {"מרפסת", "balcony"},
			"parking":          {"חניה", "חנייה", "parking"},
			"elevator":         {"מעלית", "elevator", "lift"},
			"air_conditioning": {"מזגן", "מיזוג", "air conditioning", "a/c"},
			"pets_allowed":     {"חיות מחמד", "בעלי חיים", "pet friendly", "pets allowed"},
			"renovated":        {"משופצת", "משופץ", "renovated"},
		},
	}
	l.compile()
	return l
}
