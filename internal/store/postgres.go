package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// PostgresStore persists listings to PostgreSQL.
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

// NewPostgresStore opens a connection and ensures the listings table exists.
func NewPostgresStore(connStr, tableName string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db, tableName: tableName}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("ensure table: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) ensureTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source_url TEXT,
			content_hash TEXT,
			original_text TEXT,
			price_amount DOUBLE PRECISION,
			price_currency TEXT,
			price_period TEXT,
			utilities_included BOOLEAN,
			country TEXT,
			country_code TEXT,
			city TEXT,
			neighborhood TEXT,
			street TEXT,
			full_address TEXT,
			location_confidence TEXT,
			start_date TEXT,
			end_date TEXT,
			is_flexible BOOLEAN DEFAULT FALSE,
			duration_text TEXT,
			immediate_availability BOOLEAN DEFAULT FALSE,
			dates_confidence TEXT,
			total_rooms DOUBLE PRECISION,
			bedrooms INTEGER,
			bathrooms INTEGER,
			is_studio BOOLEAN DEFAULT FALSE,
			floor INTEGER,
			total_floors INTEGER,
			listing_type TEXT,
			amenities JSONB,
			images TEXT[],
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'available',
			needs_review BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			last_parsed_at TIMESTAMP WITH TIME ZONE,
			parser_version TEXT
		)
	`, s.tableName)

	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	for _, idx := range []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_source_url_idx ON %s (source_url)`, s.tableName, s.tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_content_hash_idx ON %s (content_hash)`, s.tableName, s.tableName),
	} {
		if _, err := s.db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

const listingColumns = `
	id, source_url, content_hash, original_text,
	price_amount, price_currency, price_period, utilities_included,
	country, country_code, city, neighborhood, street, full_address, location_confidence,
	start_date, end_date, is_flexible, duration_text, immediate_availability, dates_confidence,
	total_rooms, bedrooms, bathrooms, is_studio, floor, total_floors,
	listing_type, amenities, images, lat, lng,
	status, needs_review, created_at, last_parsed_at, parser_version`

// Upsert inserts or updates a record keyed by its stable ID. On conflict
// only parsed fields are replaced; status, needs_review and created_at
// are operator-owned and left untouched.
func (s *PostgresStore) Upsert(ctx context.Context, rec *domain.ListingRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, source_url, content_hash, original_text,
			price_amount, price_currency, price_period, utilities_included,
			country, country_code, city, neighborhood, street, full_address, location_confidence,
			start_date, end_date, is_flexible, duration_text, immediate_availability, dates_confidence,
			total_rooms, bedrooms, bathrooms, is_studio, floor, total_floors,
			listing_type, amenities, images, lat, lng,
			status, needs_review, created_at, last_parsed_at, parser_version
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27,
			$28, $29, $30, $31, $32,
			$33, $34, NOW(), NOW(), $35
		)
		ON CONFLICT (id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			content_hash = EXCLUDED.content_hash,
			original_text = EXCLUDED.original_text,
			price_amount = EXCLUDED.price_amount,
			price_currency = EXCLUDED.price_currency,
			price_period = EXCLUDED.price_period,
			utilities_included = EXCLUDED.utilities_included,
			country = EXCLUDED.country,
			country_code = EXCLUDED.country_code,
			city = EXCLUDED.city,
			neighborhood = EXCLUDED.neighborhood,
			street = EXCLUDED.street,
			full_address = EXCLUDED.full_address,
			location_confidence = EXCLUDED.location_confidence,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			is_flexible = EXCLUDED.is_flexible,
			duration_text = EXCLUDED.duration_text,
			immediate_availability = EXCLUDED.immediate_availability,
			dates_confidence = EXCLUDED.dates_confidence,
			total_rooms = EXCLUDED.total_rooms,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			is_studio = EXCLUDED.is_studio,
			floor = EXCLUDED.floor,
			total_floors = EXCLUDED.total_floors,
			listing_type = EXCLUDED.listing_type,
			amenities = EXCLUDED.amenities,
			images = EXCLUDED.images,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			last_parsed_at = NOW(),
			parser_version = EXCLUDED.parser_version
	`, s.tableName)

	price := rec.Price
	if price == nil {
		price = &domain.Price{}
	}
	loc := rec.Location
	if loc == nil {
		loc = &domain.Location{}
	}
	dates := rec.Dates
	if dates == nil {
		dates = &domain.Dates{}
	}
	rooms := rec.Rooms
	if rooms == nil {
		rooms = &domain.Rooms{}
	}

	var amenities any
	if len(rec.Amenities) > 0 {
		data, err := json.Marshal(rec.Amenities)
		if err != nil {
			return fmt.Errorf("marshal amenities: %w", err)
		}
		amenities = data
	}

	status := rec.Status
	if status == "" {
		status = domain.StatusAvailable
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, nullString(rec.SourceURL), nullString(rec.ContentHash), rec.OriginalText,
		price.Amount, nullString(price.Currency), nullString(price.Period), price.UtilitiesIncluded,
		nullString(loc.Country), nullString(loc.CountryCode), nullString(loc.City),
		nullString(loc.Neighborhood), nullString(loc.Street), nullString(loc.FullAddress),
		nullString(string(loc.Confidence)),
		nullString(dates.StartDate), nullString(dates.EndDate), dates.IsFlexible,
		nullString(dates.DurationText), dates.ImmediateAvailability, nullString(string(dates.Confidence)),
		rooms.TotalRooms, rooms.Bedrooms, rooms.Bathrooms, rooms.IsStudio, rooms.Floor, rooms.TotalFloors,
		nullString(string(rec.Type)), amenities, pq.Array(rec.Images), rec.Lat, rec.Lng,
		string(status), rec.NeedsReview, nullString(rec.ParserVersion),
	)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID fetches one record; (nil, nil) when absent.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.ListingRecord, error) {
	return s.getOne(ctx, "id = $1", id)
}

// GetBySourceURL fetches the oldest record with an exact source URL match.
func (s *PostgresStore) GetBySourceURL(ctx context.Context, sourceURL string) (*domain.ListingRecord, error) {
	if sourceURL == "" {
		return nil, nil
	}
	return s.getOne(ctx, "source_url = $1", sourceURL)
}

// GetByContentHash fetches the oldest record with a content hash match.
func (s *PostgresStore) GetByContentHash(ctx context.Context, hash string) (*domain.ListingRecord, error) {
	if hash == "" {
		return nil, nil
	}
	return s.getOne(ctx, "content_hash = $1", hash)
}

func (s *PostgresStore) getOne(ctx context.Context, where string, arg any) (*domain.ListingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at, id LIMIT 1`,
		listingColumns, s.tableName, where)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return rec, nil
}

// List returns every persisted record in stable created-at order. Used
// by the offline duplicate resolver, which needs a full-collection scan.
func (s *PostgresStore) List(ctx context.Context) ([]*domain.ListingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, listingColumns, s.tableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var records []*domain.ListingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateStatus changes only the lifecycle status of a record.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2 WHERE id = $1`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, id, string(status)); err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	return nil
}

// DeleteBatch deletes the given ids in one statement and returns the
// number of rows removed. Callers bound the batch size.
func (s *PostgresStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.tableName)
	res, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete batch: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.ListingRecord, error) {
	var (
		rec domain.ListingRecord

		sourceURL, contentHash                     sql.NullString
		priceAmount                                sql.NullFloat64
		priceCurrency, pricePeriod                 sql.NullString
		utilitiesIncluded                          sql.NullBool
		country, countryCode, city                 sql.NullString
		neighborhood, street, fullAddress, locConf sql.NullString
		startDate, endDate                         sql.NullString
		isFlexible, immediate                      sql.NullBool
		durationText, datesConf                    sql.NullString
		totalRooms                                 sql.NullFloat64
		bedrooms, bathrooms, floor, totalFloors    sql.NullInt64
		isStudio                                   sql.NullBool
		listingType                                sql.NullString
		amenities                                  []byte
		images                                     pq.StringArray
		lat, lng                                   sql.NullFloat64
		status                                     string
		createdAt, lastParsedAt                    sql.NullTime
		parserVersion                              sql.NullString
	)

	err := row.Scan(
		&rec.ID, &sourceURL, &contentHash, &rec.OriginalText,
		&priceAmount, &priceCurrency, &pricePeriod, &utilitiesIncluded,
		&country, &countryCode, &city, &neighborhood, &street, &fullAddress, &locConf,
		&startDate, &endDate, &isFlexible, &durationText, &immediate, &datesConf,
		&totalRooms, &bedrooms, &bathrooms, &isStudio, &floor, &totalFloors,
		&listingType, &amenities, &images, &lat, &lng,
		&status, &rec.NeedsReview, &createdAt, &lastParsedAt, &parserVersion,
	)
	if err != nil {
		return nil, err
	}

	rec.SourceURL = sourceURL.String
	rec.ContentHash = contentHash.String
	rec.Status = domain.ListingStatus(status)
	rec.Type = domain.ListingType(listingType.String)
	rec.Images = images
	rec.ParserVersion = parserVersion.String
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if lastParsedAt.Valid {
		rec.LastParsedAt = lastParsedAt.Time
	}
	if lat.Valid && lng.Valid {
		rec.Lat = domain.Float64Ptr(lat.Float64)
		rec.Lng = domain.Float64Ptr(lng.Float64)
	}

	if priceAmount.Valid || priceCurrency.Valid || pricePeriod.Valid || utilitiesIncluded.Valid {
		rec.Price = &domain.Price{
			Currency: priceCurrency.String,
			Period:   pricePeriod.String,
		}
		if priceAmount.Valid {
			rec.Price.Amount = domain.Float64Ptr(priceAmount.Float64)
		}
		if utilitiesIncluded.Valid {
			rec.Price.UtilitiesIncluded = domain.BoolPtr(utilitiesIncluded.Bool)
		}
	}

	if country.Valid || city.Valid || neighborhood.Valid || street.Valid || fullAddress.Valid || locConf.Valid {
		rec.Location = &domain.Location{
			Country:      country.String,
			CountryCode:  countryCode.String,
			City:         city.String,
			Neighborhood: neighborhood.String,
			Street:       street.String,
			FullAddress:  fullAddress.String,
			Confidence:   domain.Confidence(locConf.String),
		}
	}

	if startDate.Valid || endDate.Valid || durationText.Valid || datesConf.Valid ||
		(isFlexible.Valid && isFlexible.Bool) || (immediate.Valid && immediate.Bool) {
		rec.Dates = &domain.Dates{
			StartDate:             startDate.String,
			EndDate:               endDate.String,
			IsFlexible:            isFlexible.Valid && isFlexible.Bool,
			DurationText:          durationText.String,
			ImmediateAvailability: immediate.Valid && immediate.Bool,
			Confidence:            domain.Confidence(datesConf.String),
		}
	}

	if totalRooms.Valid || bedrooms.Valid || bathrooms.Valid || floor.Valid ||
		totalFloors.Valid || (isStudio.Valid && isStudio.Bool) {
		rec.Rooms = &domain.Rooms{IsStudio: isStudio.Valid && isStudio.Bool}
		if totalRooms.Valid {
			rec.Rooms.TotalRooms = domain.Float64Ptr(totalRooms.Float64)
		}
		if bedrooms.Valid {
			rec.Rooms.Bedrooms = domain.IntPtr(int(bedrooms.Int64))
		}
		if bathrooms.Valid {
			rec.Rooms.Bathrooms = domain.IntPtr(int(bathrooms.Int64))
		}
		if floor.Valid {
			rec.Rooms.Floor = domain.IntPtr(int(floor.Int64))
		}
		if totalFloors.Valid {
			rec.Rooms.TotalFloors = domain.IntPtr(int(totalFloors.Int64))
		}
	}

	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &rec.Amenities); err != nil {
			return nil, fmt.Errorf("unmarshal amenities: %w", err)
		}
	}

	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
