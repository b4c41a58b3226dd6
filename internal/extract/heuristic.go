package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// Heuristic is the deterministic fallback extractor. Each sub-extractor
// is a total pure function over (text, lexicon): no sub-extractor ever
// fails, it just reports no match.
type Heuristic struct {
	lex *Lexicon
}

// NewHeuristic creates a heuristic extractor bound to a lexicon.
func NewHeuristic(lex *Lexicon) *Heuristic {
	return &Heuristic{lex: lex}
}

func (h *Heuristic) Name() string { return "heuristic" }

// Extract derives fields from raw text using pattern matching. Never
// returns an error; empty text yields a fixed low-confidence default at
// the configured city center.
func (h *Heuristic) Extract(_ context.Context, text, _ string) (*Result, error) {
	lex := h.lex
	fields := &domain.ExtractedFields{}
	result := &Result{Fields: fields}

	loc := ExtractLocation(text, lex)
	fields.Location = &domain.Location{
		Country:      lex.Country,
		CountryCode:  lex.CountryCode,
		City:         lex.City,
		Neighborhood: loc.Neighborhood,
		Street:       loc.Street,
		Confidence:   loc.Confidence,
	}
	if loc.Street != "" {
		addr := loc.Street
		if loc.HouseNumber > 0 {
			addr += " " + strconv.Itoa(loc.HouseNumber)
		}
		fields.Location.FullAddress = addr + ", " + lex.City
	}
	// Only dictionary-backed coordinates travel up the pipeline; the
	// default city center stays a LocationMatch-level placeholder so a
	// record without location evidence keeps null coordinates.
	if loc.HasCoordinates {
		result.Lat = domain.Float64Ptr(loc.Lat)
		result.Lng = domain.Float64Ptr(loc.Lng)
	}

	if dr := ExtractDateRange(text, lex); dr.Matched {
		fields.Dates = &domain.Dates{
			StartDate:  dr.Start,
			EndDate:    dr.End,
			Confidence: domain.ConfidenceMedium,
		}
	}
	lower := strings.ToLower(text)
	if containsAny(lower, lex.FlexibleKeywords) || containsAny(lower, lex.ImmediateKeywords) {
		if fields.Dates == nil {
			fields.Dates = &domain.Dates{Confidence: domain.ConfidenceLow}
		}
		fields.Dates.IsFlexible = containsAny(lower, lex.FlexibleKeywords)
		fields.Dates.ImmediateAvailability = containsAny(lower, lex.ImmediateKeywords)
	}

	if pm := ExtractPrice(text); pm.Matched {
		fields.Price = &domain.Price{
			Amount:   domain.Float64Ptr(pm.Amount),
			Currency: pm.Currency,
			Period:   pm.Period,
		}
	}

	rooms := ExtractRooms(text, lex)
	floor := ExtractFloor(text, lex)
	if rooms.Matched || floor.Matched {
		fields.Rooms = &domain.Rooms{IsStudio: rooms.IsStudio}
		if rooms.Matched {
			fields.Rooms.TotalRooms = domain.Float64Ptr(rooms.Total)
		}
		if floor.Matched {
			fields.Rooms.Floor = domain.IntPtr(floor.Floor)
			if floor.TotalFloors > 0 {
				fields.Rooms.TotalFloors = domain.IntPtr(floor.TotalFloors)
			}
		}
	}

	switch {
	case rooms.IsStudio:
		fields.Type = domain.TypeStudio
	case containsAny(lower, lex.RoommateKeywords):
		fields.Type = domain.TypeRoommate
	}

	for flag, keywords := range lex.Amenities {
		if containsAny(lower, keywords) {
			if fields.Amenities == nil {
				fields.Amenities = make(map[string]bool)
			}
			fields.Amenities[flag] = true
		}
	}

	return result, nil
}

// LocationMatch is the street/neighborhood/landmark resolution result.
// Lat/Lng always hold a coordinate; HasCoordinates reports whether it
// came from the dictionary rather than the default city center.
type LocationMatch struct {
	Street         string
	HouseNumber    int
	Neighborhood   string
	Landmark       string
	Lat            float64
	Lng            float64
	HasCoordinates bool
	Confidence     domain.Confidence
}

func (m *LocationMatch) setCoord(c Coord) {
	m.Lat, m.Lng = c.Lat, c.Lng
	m.HasCoordinates = true
}

// ExtractLocation resolves the most specific location evidence in the
// text. Priority: explicit street pattern, dictionary street match,
// neighborhood keyword pattern, landmark dictionary. Only the first
// distance-bearing hit sets coordinates; a street hit outranks a
// neighborhood hit when both are present.
func ExtractLocation(text string, lex *Lexicon) LocationMatch {
	m := LocationMatch{Confidence: domain.ConfidenceLow}
	lower := strings.ToLower(text)

	// (a) explicit street pattern in the source language.
	if sm := lex.streetRe.FindStringSubmatch(text); sm != nil {
		m.Street = strings.TrimSpace(sm[1])
		if sm[3] != "" {
			m.HouseNumber, _ = strconv.Atoi(sm[3])
		}
		m.Confidence = domain.ConfidenceMedium
	}

	// (b) dictionary lookup: the pattern candidate first, the full text
	// as a fallback. Longest key wins so "rothschild boulevard" beats
	// "rothschild".
	if m.Street != "" {
		if _, coord, ok := longestMatch(strings.ToLower(m.Street), lex.Streets); ok {
			m.setCoord(coord)
		}
	}
	if !m.HasCoordinates {
		if key, coord, ok := longestMatch(lower, lex.Streets); ok {
			if m.Street == "" {
				m.Street = key
			}
			m.setCoord(coord)
			m.Confidence = domain.ConfidenceMedium
		}
	}
	if m.HasCoordinates && m.HouseNumber > 0 {
		m.Confidence = domain.ConfidenceHigh
	}

	// (c) explicit neighborhood keyword pattern.
	if nm := lex.neighborhoodRe.FindStringSubmatch(text); nm != nil {
		m.Neighborhood = strings.TrimSpace(nm[1])
	}
	if key, coord, ok := longestMatch(lower, lex.Neighborhoods); ok {
		if m.Neighborhood == "" {
			m.Neighborhood = key
		}
		// A neighborhood is the coordinate source only when no street
		// was resolved.
		if !m.HasCoordinates {
			m.setCoord(coord)
			m.Confidence = domain.ConfidenceMedium
		}
	}

	// (d) landmark dictionary fallback.
	if !m.HasCoordinates {
		if key, coord, ok := longestMatch(lower, lex.Landmarks); ok {
			m.Landmark = key
			m.setCoord(coord)
			m.Confidence = domain.ConfidenceMedium
		}
	}

	if !m.HasCoordinates {
		m.Lat, m.Lng = lex.DefaultCenter.Lat, lex.DefaultCenter.Lng
	}
	return m
}

// longestMatch finds the longest dictionary key contained in haystack.
// Ties break lexicographically so results are stable across runs.
func longestMatch(haystack string, dict map[string]Coord) (string, Coord, bool) {
	var bestKey string
	var bestCoord Coord
	for key, coord := range dict {
		if !strings.Contains(haystack, key) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey, bestCoord = key, coord
		}
	}
	return bestKey, bestCoord, bestKey != ""
}

// DateRange is a matched availability window, zero-padded "DD.MM[.YY]".
type DateRange struct {
	Start   string
	End     string
	Matched bool
}

var numericDateRangeRe = regexp.MustCompile(
	`(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?\s*[-–—]\s*(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?`)

// ExtractDateRange tries, in order: a numeric DD.MM[.YY]-DD.MM range, a
// Hebrew "from day month to day month" construction, and an English
// "Month day - [Month] day" construction (second month defaults to the
// first). The first pattern that matches wins.
func ExtractDateRange(text string, lex *Lexicon) DateRange {
	if m := numericDateRangeRe.FindStringSubmatch(text); m != nil {
		start := pad2(m[1]) + "." + pad2(m[2])
		if m[3] != "" {
			start += "." + shortYear(m[3])
		}
		end := pad2(m[4]) + "." + pad2(m[5])
		if m[6] != "" {
			end += "." + shortYear(m[6])
		}
		return DateRange{Start: start, End: end, Matched: true}
	}

	if m := lex.hebrewRangeRe.FindStringSubmatch(text); m != nil {
		mon1, ok1 := lex.Months[m[2]]
		mon2, ok2 := lex.Months[m[4]]
		if ok1 && ok2 {
			return DateRange{
				Start:   pad2(m[1]) + "." + pad2(strconv.Itoa(mon1)),
				End:     pad2(m[3]) + "." + pad2(strconv.Itoa(mon2)),
				Matched: true,
			}
		}
	}

	if m := lex.englishRangeRe.FindStringSubmatch(text); m != nil {
		mon1, ok := lex.Months[strings.ToLower(m[1])]
		if ok {
			mon2 := mon1
			if m[3] != "" {
				if v, ok := lex.Months[strings.ToLower(m[3])]; ok {
					mon2 = v
				}
			}
			return DateRange{
				Start:   pad2(m[2]) + "." + pad2(strconv.Itoa(mon1)),
				End:     pad2(m[4]) + "." + pad2(strconv.Itoa(mon2)),
				Matched: true,
			}
		}
	}

	return DateRange{}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func shortYear(s string) string {
	if len(s) == 4 {
		return s[2:]
	}
	return s
}

// PriceMatch is a matched price.
type PriceMatch struct {
	Amount   float64
	Currency string
	Period   string
	Matched  bool
}

var (
	suffixPriceRe   = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(₪|ש"ח|שח|\$|€|£)`)
	prefixPriceRe   = regexp.MustCompile(`[$₪€£]\s*(\d[\d,]*(?:\.\d+)?)`)
	perMonthPriceRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(?:per\s+month|/\s*month|a\s+month|לחודש|בחודש)`)
)

var currencyBySymbol = map[string]string{
	"₪": "ILS", `ש"ח`: "ILS", "שח": "ILS",
	"$": "USD", "€": "EUR", "£": "GBP",
}

// ExtractPrice tries a currency-symbol-suffixed number, a symbol-prefixed
// number, and a "number per month" construction, in that order. Thousands
// separators are stripped before parsing.
func ExtractPrice(text string) PriceMatch {
	if m := suffixPriceRe.FindStringSubmatch(text); m != nil {
		return PriceMatch{Amount: parseAmount(m[1]), Currency: currencyBySymbol[m[2]], Matched: true}
	}
	if m := prefixPriceRe.FindStringSubmatch(text); m != nil {
		symbol := string([]rune(m[0])[0])
		return PriceMatch{Amount: parseAmount(m[1]), Currency: currencyBySymbol[symbol], Matched: true}
	}
	if m := perMonthPriceRe.FindStringSubmatch(text); m != nil {
		return PriceMatch{Amount: parseAmount(m[1]), Period: "month", Matched: true}
	}
	return PriceMatch{}
}

func parseAmount(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v
}

// RoomsMatch is a matched room count. Half-room conventions ("3.5") are
// preserved as-is.
type RoomsMatch struct {
	Total    float64
	IsStudio bool
	Matched  bool
}

var roomsRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d)?)\s*(?:חדרים|חדר|חד'|rooms?|bedrooms?|br\b)`)

// ExtractRooms returns 1 for studio posts; otherwise matches a
// "<number> room(s)" construction in either supported language.
func ExtractRooms(text string, lex *Lexicon) RoomsMatch {
	lower := strings.ToLower(text)
	if containsAny(lower, lex.StudioKeywords) {
		return RoomsMatch{Total: 1, IsStudio: true, Matched: true}
	}
	if m := roomsRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return RoomsMatch{Total: v, Matched: true}
		}
	}
	return RoomsMatch{}
}

// FloorMatch is a matched floor. TotalFloors is 0 when unknown.
type FloorMatch struct {
	Floor       int
	TotalFloors int
	Matched     bool
}

var (
	hebrewFloorNumRe  = regexp.MustCompile(`(?:קומה|קומת)\s*:?\s*(\d{1,2})`)
	englishFloorNumRe = regexp.MustCompile(`(?i)floor\s*:?\s*(\d{1,2})|(\d{1,2})(?:st|nd|rd|th)\s+floor`)
	totalFloorsRe     = regexp.MustCompile(`(?i)(?:מתוך|out of)\s*(\d{1,2})`)
)

// ExtractFloor tries the named-ordinal table (ground floor = 0) before
// a bare integer after a floor keyword, then the English "floor N" form.
func ExtractFloor(text string, lex *Lexicon) FloorMatch {
	total := 0
	if tm := totalFloorsRe.FindStringSubmatch(text); tm != nil {
		total, _ = strconv.Atoi(tm[1])
	}

	if m := lex.floorOrdinalRe.FindStringSubmatch(text); m != nil {
		word := m[1]
		if word == "" {
			word = m[2]
		}
		if n, ok := lex.FloorOrdinals[strings.ToLower(word)]; ok {
			return FloorMatch{Floor: n, TotalFloors: total, Matched: true}
		}
	}
	if m := hebrewFloorNumRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return FloorMatch{Floor: n, TotalFloors: total, Matched: true}
	}
	if m := englishFloorNumRe.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		n, _ := strconv.Atoi(raw)
		return FloorMatch{Floor: n, TotalFloors: total, Matched: true}
	}
	return FloorMatch{}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
