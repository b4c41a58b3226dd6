package domain

import "time"

// Confidence indicates how trustworthy an extracted field is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ListingStatus is the lifecycle state of a persisted listing.
type ListingStatus string

const (
	StatusAvailable ListingStatus = "available"
	StatusTaken     ListingStatus = "taken"
	StatusExpired   ListingStatus = "expired"
)

// ListingType classifies what is being offered.
type ListingType string

const (
	TypeEntirePlace ListingType = "entire_place"
	TypeRoommate    ListingType = "roommate"
	TypeStudio      ListingType = "studio"
)

// RawPost represents one scraped social post before processing.
// Scrapers disagree on field names; the normalizer maps their payloads
// into this shape.
type RawPost struct {
	ExternalID   string    `json:"external_id,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Text         string    `json:"text"`
	Images       []string  `json:"images,omitempty"`
	PostedAt     time.Time `json:"posted_at,omitempty"`
	GroupContext string    `json:"group_context,omitempty"`
}

// Price holds extracted price information. A nil Amount means the
// extractor could not determine a price.
type Price struct {
	Amount            *float64 `json:"amount"`
	Currency          string   `json:"currency,omitempty"`
	Period            string   `json:"period,omitempty"` // month, week, night
	UtilitiesIncluded *bool    `json:"utilities_included,omitempty"`
}

// Location holds extracted location information.
type Location struct {
	Country      string     `json:"country,omitempty"`
	CountryCode  string     `json:"country_code,omitempty"`
	City         string     `json:"city,omitempty"`
	Neighborhood string     `json:"neighborhood,omitempty"`
	Street       string     `json:"street,omitempty"`
	FullAddress  string     `json:"full_address,omitempty"`
	Confidence   Confidence `json:"confidence,omitempty"`
}

// Dates holds the extracted availability window. StartDate and EndDate
// use the zero-padded "DD.MM" form (optionally "DD.MM.YY").
type Dates struct {
	StartDate             string     `json:"start_date,omitempty"`
	EndDate               string     `json:"end_date,omitempty"`
	IsFlexible            bool       `json:"is_flexible,omitempty"`
	DurationText          string     `json:"duration_text,omitempty"`
	ImmediateAvailability bool       `json:"immediate_availability,omitempty"`
	Confidence            Confidence `json:"confidence,omitempty"`
}

// Rooms holds extracted room counts. TotalRooms is a float because
// half-room conventions ("3.5 rooms") are preserved as-is.
type Rooms struct {
	TotalRooms  *float64 `json:"total_rooms"`
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	IsStudio    bool     `json:"is_studio,omitempty"`
	Floor       *int     `json:"floor,omitempty"`
	TotalFloors *int     `json:"total_floors,omitempty"`
}

// ExtractedFields is the output of either extraction path. Fields the
// extractor could not determine stay nil/empty; defaults are applied
// later, explicitly, by the caller.
type ExtractedFields struct {
	Price     *Price          `json:"price,omitempty"`
	Location  *Location       `json:"location,omitempty"`
	Dates     *Dates          `json:"dates,omitempty"`
	Rooms     *Rooms          `json:"rooms,omitempty"`
	Type      ListingType     `json:"type,omitempty"`
	Amenities map[string]bool `json:"amenities,omitempty"` // unknown = absent, not false
}

// ListingRecord is the persisted, canonical listing entity. Many RawPost
// instances may map to one record over time (re-scrapes); the mapping
// key is SourceURL first, ContentHash second.
type ListingRecord struct {
	ID           string `json:"id"`
	SourceURL    string `json:"source_url,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
	OriginalText string `json:"original_text"`

	Price     *Price          `json:"price,omitempty"`
	Location  *Location       `json:"location,omitempty"`
	Dates     *Dates          `json:"dates,omitempty"`
	Rooms     *Rooms          `json:"rooms,omitempty"`
	Type      ListingType     `json:"type,omitempty"`
	Amenities map[string]bool `json:"amenities,omitempty"`

	Images []string `json:"images,omitempty"`

	// Lat/Lng are nil when the listing was never geocoded. A real
	// coordinate of 0,0 is representable and distinct from nil.
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`

	Status      ListingStatus `json:"status"`
	NeedsReview bool          `json:"needs_review,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	LastParsedAt  time.Time `json:"last_parsed_at"`
	ParserVersion string    `json:"parser_version,omitempty"`
}

// HasCoordinates reports whether the record carries a usable geocode.
func (r *ListingRecord) HasCoordinates() bool {
	return r.Lat != nil && r.Lng != nil && (*r.Lat != 0 || *r.Lng != 0)
}

// Fields returns the record's extracted fields as an ExtractedFields
// value, for diffing against a fresh extraction.
func (r *ListingRecord) Fields() ExtractedFields {
	return ExtractedFields{
		Price:     r.Price,
		Location:  r.Location,
		Dates:     r.Dates,
		Rooms:     r.Rooms,
		Type:      r.Type,
		Amenities: r.Amenities,
	}
}

// Float64Ptr returns a pointer to v. Convenience for nullable fields.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
