package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"newhome-tracker/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const listingColumns = `id, plan_name, company, community, type, price, sqft, stories,
	price_per_sqft, beds, baths, address, design_number, last_updated`

// SQLStore persists listings to PostgreSQL or SQLite through database/sql.
// Queries are written with "?" placeholders and rebound for Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, waits for it to accept connections, and
// ensures the schema exists.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("storage: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping failed after retries: %w", err)
	}

	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and runs the idempotent schema setup.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Migrate creates tables and indexes when missing. Safe to run on every start.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.driver == DriverSQLite {
		schema = sqliteSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS listings (
		id             BIGSERIAL     PRIMARY KEY,
		plan_name      TEXT          NOT NULL,
		company        TEXT          NOT NULL,
		community      TEXT          NOT NULL,
		type           VARCHAR(10)   NOT NULL,
		price          BIGINT,
		sqft           BIGINT,
		stories        VARCHAR(20)   NOT NULL DEFAULT '',
		price_per_sqft NUMERIC(12,2),
		beds           VARCHAR(20)   NOT NULL DEFAULT '',
		baths          VARCHAR(20)   NOT NULL DEFAULT '',
		address        TEXT          NOT NULL DEFAULT '',
		design_number  TEXT          NOT NULL DEFAULT '',
		last_updated   TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_listings_identity UNIQUE (plan_name, company, community, type)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id         BIGSERIAL   PRIMARY KEY,
		listing_id BIGINT      NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		old_price  BIGINT      NOT NULL,
		new_price  BIGINT      NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ck_price_history_changed CHECK (old_price <> new_price)
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_changed_at ON price_history(changed_at);
	CREATE INDEX IF NOT EXISTS idx_price_history_listing    ON price_history(listing_id);
	CREATE INDEX IF NOT EXISTS idx_listings_community       ON listings(community);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS listings (
		id             INTEGER   PRIMARY KEY AUTOINCREMENT,
		plan_name      TEXT      NOT NULL,
		company        TEXT      NOT NULL,
		community      TEXT      NOT NULL,
		type           TEXT      NOT NULL,
		price          INTEGER,
		sqft           INTEGER,
		stories        TEXT      NOT NULL DEFAULT '',
		price_per_sqft REAL,
		beds           TEXT      NOT NULL DEFAULT '',
		baths          TEXT      NOT NULL DEFAULT '',
		address        TEXT      NOT NULL DEFAULT '',
		design_number  TEXT      NOT NULL DEFAULT '',
		last_updated   TIMESTAMP NOT NULL,
		UNIQUE (plan_name, company, community, type)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id         INTEGER   PRIMARY KEY AUTOINCREMENT,
		listing_id INTEGER   NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		old_price  INTEGER   NOT NULL,
		new_price  INTEGER   NOT NULL,
		changed_at TIMESTAMP NOT NULL,
		CHECK (old_price <> new_price)
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_changed_at ON price_history(changed_at);
	CREATE INDEX IF NOT EXISTS idx_price_history_listing    ON price_history(listing_id);
	CREATE INDEX IF NOT EXISTS idx_listings_community       ON listings(community);
`

// Session pins one connection for the lifetime of a harvest cycle.
func (s *SQLStore) Session(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: acquire session: %w", err)
	}
	return &sqlSession{conn: conn, driver: s.driver}, nil
}

// ListAllListings retrieves every stored listing ordered by id.
func (s *SQLStore) ListAllListings(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// RecentPriceChanges returns price history rows with changed_at >= since.
func (s *SQLStore) RecentPriceChanges(ctx context.Context, since time.Time) ([]*models.PriceHistory, error) {
	return s.queryHistory(ctx, `SELECT id, listing_id, old_price, new_price, changed_at
		FROM price_history WHERE changed_at >= ? ORDER BY changed_at, id`, since.UTC())
}

// ListPriceHistory returns the whole journal, oldest first.
func (s *SQLStore) ListPriceHistory(ctx context.Context) ([]*models.PriceHistory, error) {
	return s.queryHistory(ctx, `SELECT id, listing_id, old_price, new_price, changed_at
		FROM price_history ORDER BY changed_at, id`)
}

func (s *SQLStore) queryHistory(ctx context.Context, query string, args ...any) ([]*models.PriceHistory, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query price history: %w", err)
	}
	defer rows.Close()

	var out []*models.PriceHistory
	for rows.Next() {
		h := &models.PriceHistory{}
		if err := rows.Scan(&h.ID, &h.ListingID, &h.OldPrice, &h.NewPrice, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("storage: scan price history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlSession struct {
	conn   *sql.Conn
	driver string
}

func (s *sqlSession) Begin(ctx context.Context) (ListingTx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: begin: %w", err)
	}
	return &sqlTx{tx: tx, driver: s.driver}, nil
}

func (s *sqlSession) Close() error {
	return s.conn.Close()
}

type sqlTx struct {
	tx     *sql.Tx
	driver string
}

func (t *sqlTx) FindByIdentity(ctx context.Context, id models.Identity) (*models.Listing, error) {
	row := t.tx.QueryRowContext(ctx, rebind(t.driver, `SELECT `+listingColumns+` FROM listings
		WHERE plan_name = ? AND company = ? AND community = ? AND type = ?`),
		id.PlanName, id.Company, id.Community, id.Type)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find by identity: %w", err)
	}
	return l, nil
}

func (t *sqlTx) InsertListing(ctx context.Context, l *models.Listing) error {
	err := t.tx.QueryRowContext(ctx, rebind(t.driver, `
		INSERT INTO listings (plan_name, company, community, type, price, sqft, stories,
			price_per_sqft, beds, baths, address, design_number, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		l.PlanName, l.Company, l.Community, l.Type, l.Price, l.Sqft, l.Stories,
		l.PricePerSqft, l.Beds, l.Baths, l.Address, l.DesignNumber, l.LastUpdated.UTC(),
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("storage: insert listing: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateListing(ctx context.Context, l *models.Listing) error {
	res, err := t.tx.ExecContext(ctx, rebind(t.driver, `
		UPDATE listings SET type = ?, price = ?, sqft = ?, stories = ?, price_per_sqft = ?,
			beds = ?, baths = ?, address = ?, design_number = ?, last_updated = ?
		WHERE id = ?`),
		l.Type, l.Price, l.Sqft, l.Stories, l.PricePerSqft,
		l.Beds, l.Baths, l.Address, l.DesignNumber, l.LastUpdated.UTC(), l.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: update listing %d: %w", l.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("storage: update listing %d: %w", l.ID, ErrNotFound)
	}
	return nil
}

func (t *sqlTx) AppendPriceHistory(ctx context.Context, listingID, oldPrice, newPrice int64, at time.Time) error {
	if oldPrice == newPrice {
		return fmt.Errorf("storage: price history for listing %d: old and new price are both %d", listingID, newPrice)
	}
	_, err := t.tx.ExecContext(ctx, rebind(t.driver, `
		INSERT INTO price_history (listing_id, old_price, new_price, changed_at)
		VALUES (?, ?, ?, ?)`),
		listingID, oldPrice, newPrice, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: append price history: %w", err)
	}
	return nil
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		l     models.Listing
		price sql.NullInt64
		sqft  sql.NullInt64
		ppsf  sql.NullFloat64
	)
	if err := row.Scan(
		&l.ID, &l.PlanName, &l.Company, &l.Community, &l.Type, &price, &sqft, &l.Stories,
		&ppsf, &l.Beds, &l.Baths, &l.Address, &l.DesignNumber, &l.LastUpdated,
	); err != nil {
		return nil, err
	}
	if price.Valid {
		l.Price = &price.Int64
	}
	if sqft.Valid {
		l.Sqft = &sqft.Int64
	}
	if ppsf.Valid {
		l.PricePerSqft = &ppsf.Float64
	}
	l.LastUpdated = l.LastUpdated.UTC()
	return &l, nil
}

// rebind converts "?" placeholders to "$n" for Postgres.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
