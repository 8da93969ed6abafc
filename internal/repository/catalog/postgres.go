package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

const (
	baseColumns     = "id, name, description, category, price, is_vegetarian, is_vegan, ingredients"
	extendedColumns = ", cuisine_type, spice_level, contains_egg, search_keywords"
)

// PostgresSource reads available items from the restaurant backend's menu table.
type PostgresSource struct {
	db           *sql.DB
	table        string
	restaurantID string
	extended     bool
	logger       *zap.Logger
}

// PostgresOption configures a PostgresSource.
type PostgresOption func(*PostgresSource)

// WithTable overrides the menu table name.
func WithTable(name string) PostgresOption {
	return func(s *PostgresSource) { s.table = name }
}

// WithRestaurant limits the catalog to one restaurant.
func WithRestaurant(id string) PostgresOption {
	return func(s *PostgresSource) { s.restaurantID = id }
}

// WithExtendedColumns also reads cuisine_type, spice_level, contains_egg and search_keywords.
func WithExtendedColumns() PostgresOption {
	return func(s *PostgresSource) { s.extended = true }
}

// WithPostgresLogger sets the logger used for skipped rows.
func WithPostgresLogger(l *zap.Logger) PostgresOption {
	return func(s *PostgresSource) { s.logger = l }
}

// NewPostgresSource creates a source over an open database handle.
func NewPostgresSource(db *sql.DB, opts ...PostgresOption) *PostgresSource {
	s := &PostgresSource{db: db, table: "menu_menuitem", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenDB opens and pings a Postgres pool through the pgx stdlib driver.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *PostgresSource) query() (string, []any) {
	cols := baseColumns
	if s.extended {
		cols += extendedColumns
	}
	q := "SELECT " + cols + " FROM " + s.table + " WHERE available = true"
	var args []any
	if s.restaurantID != "" {
		q += " AND restaurant_id = $1"
		args = append(args, s.restaurantID)
	}
	return q + " ORDER BY id", args
}

// Load reads every available item. Rows failing validation are skipped.
func (s *PostgresSource) Load(ctx context.Context) (menu.Snapshot, error) {
	q, args := s.query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return menu.Snapshot{}, fmt.Errorf("%w: query menu items: %w", domain.ErrCatalogUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var snap menu.Snapshot
	for rows.Next() {
		it, err := s.scan(rows)
		if err != nil {
			return menu.Snapshot{}, fmt.Errorf("%w: scan menu item: %w", domain.ErrCatalogUnavailable, err)
		}
		keep(&snap, it, s.logger)
	}
	if err := rows.Err(); err != nil {
		return menu.Snapshot{}, fmt.Errorf("%w: iterate menu items: %w", domain.ErrCatalogUnavailable, err)
	}
	return snap, nil
}

func (s *PostgresSource) scan(rows *sql.Rows) (menu.Item, error) {
	var (
		id                   int64
		name, desc, category sql.NullString
		price                sql.NullFloat64
		veg, vegan           sql.NullBool
		ingredients          []byte
	)
	dest := []any{&id, &name, &desc, &category, &price, &veg, &vegan, &ingredients}

	var (
		cuisine, spice sql.NullString
		egg            sql.NullBool
		keywords       []byte
	)
	if s.extended {
		dest = append(dest, &cuisine, &spice, &egg, &keywords)
	}

	if err := rows.Scan(dest...); err != nil {
		return menu.Item{}, err
	}

	it := menu.Item{
		ID:           strconv.FormatInt(id, 10),
		Name:         name.String,
		Price:        price.Float64,
		Category:     category.String,
		Description:  desc.String,
		IsVegetarian: veg.Bool,
		IsVegan:      vegan.Bool,
		Ingredients:  decodeStrings(ingredients),
	}
	if s.extended {
		it.Cuisine = cuisine.String
		it.SpiceLevel = spice.String
		it.ContainsEgg = egg.Bool
		it.Keywords = decodeStrings(keywords)
	}
	return it, nil
}

// decodeStrings reads a JSON array of strings. Anything else decodes as empty.
func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
