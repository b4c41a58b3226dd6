package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-tktt/go-sublets/internal/domain"
)

func TestExtractLocation(t *testing.T) {
	t.Parallel()
	lex := TelAvivLexicon()

	tests := []struct {
		name       string
		text       string
		street     string
		house      int
		hasCoords  bool
		lat        float64
		confidence domain.Confidence
	}{
		{
			name:       "hebrew street with house number",
			text:       "דירה מהממת ברחוב דיזנגוף 100, כניסה מיידית",
			street:     "דיזנגוף",
			house:      100,
			hasCoords:  true,
			lat:        32.0781,
			confidence: domain.ConfidenceHigh,
		},
		{
			name:       "longest dictionary key wins",
			text:       "Beautiful 2br apartment on Rothschild Boulevard for the summer",
			street:     "rothschild boulevard",
			hasCoords:  true,
			lat:        32.0636,
			confidence: domain.ConfidenceMedium,
		},
		{
			name:       "landmark fallback",
			text:       "חדר פנוי ליד כיכר רבין",
			hasCoords:  true,
			lat:        32.0807,
			confidence: domain.ConfidenceMedium,
		},
		{
			name:       "no evidence defaults to city center",
			text:       "great apartment, call me",
			hasCoords:  false,
			lat:        lex.DefaultCenter.Lat,
			confidence: domain.ConfidenceLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := ExtractLocation(tt.text, lex)
			assert.Equal(t, tt.street, m.Street)
			assert.Equal(t, tt.house, m.HouseNumber)
			assert.Equal(t, tt.hasCoords, m.HasCoordinates)
			assert.InDelta(t, tt.lat, m.Lat, 0.0001)
			assert.Equal(t, tt.confidence, m.Confidence)
		})
	}
}

func TestExtractLocationStreetOutranksNeighborhood(t *testing.T) {
	t.Parallel()
	lex := TelAvivLexicon()

	// Both a street and a neighborhood appear; the street supplies the
	// coordinate, the neighborhood is still recorded.
	m := ExtractLocation("דירה בפלורנטין ברחוב הרצל 20", lex)
	assert.Equal(t, "הרצל", m.Street)
	assert.Equal(t, "פלורנטין", m.Neighborhood)
	assert.InDelta(t, 32.0573, m.Lat, 0.0001)
}

func TestExtractDateRange(t *testing.T) {
	t.Parallel()
	lex := TelAvivLexicon()

	tests := []struct {
		name       string
		text       string
		start, end string
		matched    bool
	}{
		{
			name:    "numeric range zero padded",
			text:    "פנויה 1.3-15.4 בלבד",
			start:   "01.03",
			end:     "15.04",
			matched: true,
		},
		{
			name:    "numeric range with years",
			text:    "available 15.06.2025 - 30.07.2025",
			start:   "15.06.25",
			end:     "30.07.25",
			matched: true,
		},
		{
			name:    "english range second month defaults to first",
			text:    "Sublet March 1-15 while I'm away",
			start:   "01.03",
			end:     "15.03",
			matched: true,
		},
		{
			name:    "english range with both months",
			text:    "free from June 10 to July 5",
			start:   "10.06",
			end:     "05.07",
			matched: true,
		},
		{
			name:    "hebrew range",
			text:    "להשכרה מ-1 ביוני עד 15 ביולי",
			start:   "01.06",
			end:     "15.07",
			matched: true,
		},
		{
			name: "no dates",
			text: "great apartment in the center",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dr := ExtractDateRange(tt.text, lex)
			assert.Equal(t, tt.matched, dr.Matched)
			assert.Equal(t, tt.start, dr.Start)
			assert.Equal(t, tt.end, dr.End)
		})
	}
}

func TestExtractPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		amount   float64
		currency string
		period   string
		matched  bool
	}{
		{"shekel suffix with separator", "רק 4,500₪ לחודש", 4500, "ILS", "", true},
		{"shekel letters", "3500 שח כולל הכל", 3500, "ILS", "", true},
		{"dollar prefix", "asking $1200 for the summer", 1200, "USD", "", true},
		{"euro prefix", "€950 all included", 950, "EUR", "", true},
		{"bare per month", "5000 per month, utilities included", 5000, "", "month", true},
		{"no price", "price on request", 0, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pm := ExtractPrice(tt.text)
			assert.Equal(t, tt.matched, pm.Matched)
			assert.Equal(t, tt.amount, pm.Amount)
			assert.Equal(t, tt.currency, pm.Currency)
			assert.Equal(t, tt.period, pm.Period)
		})
	}
}

func TestExtractRooms(t *testing.T) {
	t.Parallel()
	lex := TelAvivLexicon()

	tests := []struct {
		name    string
		text    string
		total   float64
		studio  bool
		matched bool
	}{
		{"hebrew half room", "דירת 3.5 חדרים בצפון הישן", 3.5, false, true},
		{"english bedrooms", "spacious 2 bedrooms near the beach", 2, false, true},
		{"studio keyword", "סטודיו מקסים ומרוהט", 1, true, true},
		{"english studio", "cozy studio on the beach", 1, true, true},
		{"no rooms", "apartment available", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rm := ExtractRooms(tt.text, lex)
			assert.Equal(t, tt.matched, rm.Matched)
			assert.Equal(t, tt.total, rm.Total)
			assert.Equal(t, tt.studio, rm.IsStudio)
		})
	}
}

func TestExtractFloor(t *testing.T) {
	t.Parallel()
	lex := TelAvivLexicon()

	tests := []struct {
		name    string
		text    string
		floor   int
		total   int
		matched bool
	}{
		{"hebrew ordinal", "דירה בקומה שלישית עם מעלית", 3, 0, true},
		{"hebrew numeric with total", "קומה 2 מתוך 5", 2, 5, true},
		{"english ordinal", "sunny flat on the second floor", 2, 0, true},
		{"english floor n", "apartment, floor 4, no elevator", 4, 0, true},
		{"ground floor is zero", "ground floor apartment with garden", 0, 0, true},
		{"no floor", "apartment with balcony", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fm := ExtractFloor(tt.text, lex)
			assert.Equal(t, tt.matched, fm.Matched)
			assert.Equal(t, tt.floor, fm.Floor)
			assert.Equal(t, tt.total, fm.TotalFloors)
		})
	}
}

func TestHeuristicExtract(t *testing.T) {
	t.Parallel()
	h := NewHeuristic(TelAvivLexicon())

	text := "סטודיו מרוהט ברחוב דיזנגוף 80, קומה שלישית, 4,500₪ לחודש, " +
		"פנוי 1.7-31.8, מרפסת ומזגן, כניסה מיידית"

	res, err := h.Extract(context.Background(), text, "")
	require.NoError(t, err)
	require.NotNil(t, res.Fields)
	fields := res.Fields

	require.NotNil(t, fields.Location)
	assert.Equal(t, "Tel Aviv", fields.Location.City)
	assert.Equal(t, "דיזנגוף", fields.Location.Street)
	assert.Equal(t, domain.ConfidenceHigh, fields.Location.Confidence)
	require.NotNil(t, res.Lat)
	assert.InDelta(t, 32.0781, *res.Lat, 0.0001)

	require.NotNil(t, fields.Price)
	require.NotNil(t, fields.Price.Amount)
	assert.Equal(t, float64(4500), *fields.Price.Amount)
	assert.Equal(t, "ILS", fields.Price.Currency)

	require.NotNil(t, fields.Dates)
	assert.Equal(t, "01.07", fields.Dates.StartDate)
	assert.Equal(t, "31.08", fields.Dates.EndDate)
	assert.True(t, fields.Dates.ImmediateAvailability)

	require.NotNil(t, fields.Rooms)
	require.NotNil(t, fields.Rooms.TotalRooms)
	assert.Equal(t, float64(1), *fields.Rooms.TotalRooms)
	assert.True(t, fields.Rooms.IsStudio)
	require.NotNil(t, fields.Rooms.Floor)
	assert.Equal(t, 3, *fields.Rooms.Floor)

	assert.Equal(t, domain.TypeStudio, fields.Type)
	assert.True(t, fields.Amenities["furnished"])
	assert.True(t, fields.Amenities["balcony"])
	assert.True(t, fields.Amenities["air_conditioning"])
	assert.False(t, fields.Amenities["parking"])
}

func TestHeuristicNeverFails(t *testing.T) {
	t.Parallel()
	h := NewHeuristic(TelAvivLexicon())

	for _, text := range []string{"", "   ", "???", "זמין"} {
		res, err := h.Extract(context.Background(), text, "")
		require.NoError(t, err)
		require.NotNil(t, res.Fields)
		require.NotNil(t, res.Fields.Location)
		assert.Equal(t, domain.ConfidenceLow, res.Fields.Location.Confidence)
	}
}
