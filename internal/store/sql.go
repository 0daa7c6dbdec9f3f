// database/sql Store implementation shared by the sqlite and postgres drivers.
// One implementation serves SQLite (modernc.org/sqlite, pure Go) and
// PostgreSQL (pgx stdlib driver); the dialect covers DDL types,
// placeholder syntax and row locking.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/gearbox-app/gearbox/pkg/models"
)

type dialect struct {
	name      string
	jsonType  string
	realType  string
	timeType  string
	forUpdate string
	dollar    bool
}

var (
	sqliteDialect = dialect{
		name:     "sqlite",
		jsonType: "TEXT",
		realType: "REAL",
		timeType: "TEXT",
	}
	postgresDialect = dialect{
		name:      "postgres",
		jsonType:  "JSONB",
		realType:  "DOUBLE PRECISION",
		timeType:  "TIMESTAMPTZ",
		forUpdate: " FOR UPDATE",
		dollar:    true,
	}
)

// rebind rewrites "?" placeholders to "$n" for dialects that need it.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
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

func (d dialect) timeArg(t time.Time) any {
	if d.dollar {
		return t
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// OpenSQLite opens (or creates) a SQLite database at path with WAL enabled
// and runs migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

// OpenPostgres connects with the pgx stdlib driver and runs migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, d: d}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("driver", d.name).Msg("SQL store configured")
	return s, nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error {
	log.Info().Str("driver", s.d.name).Msg("SQL store closed")
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	j, r, ts := s.d.jsonType, s.d.realType, s.d.timeType
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gear_items (
			id TEXT PRIMARY KEY,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT NOT NULL DEFAULT '',
			size TEXT NOT NULL DEFAULT '',
			purchase_date TEXT NOT NULL DEFAULT '',
			cost ` + r + `,
			weight_grams INTEGER,
			status TEXT NOT NULL DEFAULT 'active',
			specifications ` + j + `,
			compatibility ` + j + `,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gear_items_category ON gear_items (category)`,
		`CREATE TABLE IF NOT EXISTS gear_performance (
			id TEXT PRIMARY KEY,
			gear_id TEXT NOT NULL,
			activity_type TEXT NOT NULL DEFAULT '',
			specific_activity TEXT NOT NULL DEFAULT '',
			conditions ` + j + `,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 10),
			performance_aspects ` + j + `,
			notes TEXT NOT NULL DEFAULT '',
			date_logged TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gear_performance_gear ON gear_performance (gear_id)`,
		`CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			end_date TEXT NOT NULL DEFAULT '',
			activities ` + j + `,
			expected_conditions ` + j + `,
			gear_used ` + j + `,
			notes TEXT NOT NULL DEFAULT '',
			weather_data ` + j + `,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			function_calls ` + j + `,
			created_at ` + ts + ` NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(query), args...)
	return err
}

// ── Gear Store ──────────────────────────────────────────────

const gearColumns = `id, brand, model, category, subcategory, size, purchase_date, cost,
	weight_grams, status, specifications, compatibility, created_at`

func (s *SQLStore) ListGearItems(ctx context.Context, category string) ([]models.GearItem, error) {
	query := `SELECT ` + gearColumns + ` FROM gear_items`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list gear items: %w", err)
	}
	defer rows.Close()

	result := make([]models.GearItem, 0)
	for rows.Next() {
		g, err := scanGearItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	return result, rows.Err()
}

func (s *SQLStore) GetGearItem(ctx context.Context, id string) (*models.GearItem, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+gearColumns+` FROM gear_items WHERE id = ?`), id)
	g, err := scanGearItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "gear item", Key: id}
	}
	return g, err
}

func (s *SQLStore) CreateGearItem(ctx context.Context, item *models.GearItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.ID = NewID()
	item.CreatedAt = time.Now().UTC()

	specs, err := jsonArg(item.Specifications)
	if err != nil {
		return err
	}
	compat, err := jsonArg(item.Compatibility)
	if err != nil {
		return err
	}
	err = s.exec(ctx, `INSERT INTO gear_items (`+gearColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Brand, item.Model, string(item.Category), item.Subcategory, item.Size,
		item.PurchaseDate, nullFloat(item.Cost), nullInt(item.WeightGrams), item.Status,
		specs, compat, s.d.timeArg(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("create gear item: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateGearItem(ctx context.Context, id string, patch models.GearItemPatch) (*models.GearItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, s.d.rebind(`SELECT `+gearColumns+` FROM gear_items WHERE id = ?`+s.d.forUpdate), id)
	item, err := scanGearItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "gear item", Key: id}
	}
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(item); err != nil {
		return nil, err
	}

	specs, err := jsonArg(item.Specifications)
	if err != nil {
		return nil, err
	}
	compat, err := jsonArg(item.Compatibility)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE gear_items SET brand = ?, model = ?, category = ?,
		subcategory = ?, size = ?, purchase_date = ?, cost = ?, weight_grams = ?, status = ?,
		specifications = ?, compatibility = ? WHERE id = ?`),
		item.Brand, item.Model, string(item.Category), item.Subcategory, item.Size, item.PurchaseDate,
		nullFloat(item.Cost), nullInt(item.WeightGrams), item.Status, specs, compat, id)
	if err != nil {
		return nil, fmt.Errorf("update gear item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return item, nil
}

func (s *SQLStore) DeleteGearItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`DELETE FROM gear_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete gear item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ErrNotFound{Entity: "gear item", Key: id}
	}
	return nil
}

func scanGearItem(row interface{ Scan(...any) error }) (*models.GearItem, error) {
	var (
		g             models.GearItem
		category      string
		cost          sql.NullFloat64
		weight        sql.NullInt64
		specs, compat sql.NullString
		created       scanTime
	)
	err := row.Scan(&g.ID, &g.Brand, &g.Model, &category, &g.Subcategory, &g.Size, &g.PurchaseDate,
		&cost, &weight, &g.Status, &specs, &compat, &created)
	if err != nil {
		return nil, err
	}
	g.Category = models.GearCategory(category)
	if cost.Valid {
		g.Cost = &cost.Float64
	}
	if weight.Valid {
		w := int(weight.Int64)
		g.WeightGrams = &w
	}
	if err := decodeJSON(specs, &g.Specifications); err != nil {
		return nil, err
	}
	if err := decodeJSON(compat, &g.Compatibility); err != nil {
		return nil, err
	}
	g.CreatedAt = created.Time
	return &g, nil
}

// ── Performance Store ───────────────────────────────────────

const performanceColumns = `id, gear_id, activity_type, specific_activity, conditions, rating,
	performance_aspects, notes, date_logged, created_at`

func (s *SQLStore) CreateGearPerformance(ctx context.Context, perf *models.GearPerformance) error {
	if err := perf.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	perf.ID = NewID()
	perf.CreatedAt = now
	if perf.DateLogged == "" {
		perf.DateLogged = now.Format(models.DateLayout)
	}

	conditions, err := jsonArg(perf.Conditions)
	if err != nil {
		return err
	}
	aspects, err := jsonArg(perf.PerformanceAspects)
	if err != nil {
		return err
	}
	err = s.exec(ctx, `INSERT INTO gear_performance (`+performanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		perf.ID, perf.GearID, perf.ActivityType, perf.SpecificActivity, conditions, perf.Rating,
		aspects, perf.Notes, perf.DateLogged, s.d.timeArg(perf.CreatedAt))
	if err != nil {
		return fmt.Errorf("create gear performance: %w", err)
	}
	return nil
}

func (s *SQLStore) ListGearPerformance(ctx context.Context, gearID string) ([]models.GearPerformance, error) {
	return s.listPerformance(ctx, `SELECT `+performanceColumns+` FROM gear_performance WHERE gear_id = ? ORDER BY id`, gearID)
}

func (s *SQLStore) ListAllGearPerformance(ctx context.Context) ([]models.GearPerformance, error) {
	return s.listPerformance(ctx, `SELECT `+performanceColumns+` FROM gear_performance ORDER BY id`)
}

func (s *SQLStore) listPerformance(ctx context.Context, query string, args ...any) ([]models.GearPerformance, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list gear performance: %w", err)
	}
	defer rows.Close()

	result := make([]models.GearPerformance, 0)
	for rows.Next() {
		var (
			p                  models.GearPerformance
			conditions, aspect sql.NullString
			created            scanTime
		)
		if err := rows.Scan(&p.ID, &p.GearID, &p.ActivityType, &p.SpecificActivity, &conditions,
			&p.Rating, &aspect, &p.Notes, &p.DateLogged, &created); err != nil {
			return nil, err
		}
		if err := decodeJSON(conditions, &p.Conditions); err != nil {
			return nil, err
		}
		if err := decodeJSON(aspect, &p.PerformanceAspects); err != nil {
			return nil, err
		}
		p.CreatedAt = created.Time
		result = append(result, p)
	}
	return result, rows.Err()
}

// ── Trip Store ──────────────────────────────────────────────

const tripColumns = `id, name, location, start_date, end_date, activities, expected_conditions,
	gear_used, notes, weather_data, created_at`

func (s *SQLStore) ListTrips(ctx context.Context) ([]models.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	result := make([]models.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (s *SQLStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+tripColumns+` FROM trips WHERE id = ?`), id)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "trip", Key: id}
	}
	return t, err
}

func (s *SQLStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	trip.ID = NewID()
	trip.CreatedAt = time.Now().UTC()

	args, err := tripJSONArgs(trip)
	if err != nil {
		return err
	}
	err = s.exec(ctx, `INSERT INTO trips (`+tripColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trip.ID, trip.Name, trip.Location, trip.StartDate, trip.EndDate,
		args[0], args[1], args[2], trip.Notes, args[3], s.d.timeArg(trip.CreatedAt))
	if err != nil {
		return fmt.Errorf("create trip: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateTrip(ctx context.Context, id string, patch models.TripPatch) (*models.Trip, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, s.d.rebind(`SELECT `+tripColumns+` FROM trips WHERE id = ?`+s.d.forUpdate), id)
	trip, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "trip", Key: id}
	}
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(trip); err != nil {
		return nil, err
	}

	args, err := tripJSONArgs(trip)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE trips SET name = ?, location = ?, start_date = ?,
		end_date = ?, activities = ?, expected_conditions = ?, gear_used = ?, notes = ?,
		weather_data = ? WHERE id = ?`),
		trip.Name, trip.Location, trip.StartDate, trip.EndDate,
		args[0], args[1], args[2], trip.Notes, args[3], id)
	if err != nil {
		return nil, fmt.Errorf("update trip: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return trip, nil
}

// tripJSONArgs encodes activities, expectedConditions, gearUsed and weatherData.
func tripJSONArgs(t *models.Trip) ([4]any, error) {
	var out [4]any
	var err error
	if out[0], err = jsonArg(t.Activities); err != nil {
		return out, err
	}
	if out[1], err = jsonArg(t.ExpectedConditions); err != nil {
		return out, err
	}
	if out[2], err = jsonArg(t.GearUsed); err != nil {
		return out, err
	}
	if t.WeatherData != nil {
		if out[3], err = jsonArg(t.WeatherData); err != nil {
			return out, err
		}
	}
	return out, nil
}

func scanTrip(row interface{ Scan(...any) error }) (*models.Trip, error) {
	var (
		t                                  models.Trip
		activities, expected, used, wxData sql.NullString
		created                            scanTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.Location, &t.StartDate, &t.EndDate, &activities, &expected,
		&used, &t.Notes, &wxData, &created)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(activities, &t.Activities); err != nil {
		return nil, err
	}
	if err := decodeJSON(expected, &t.ExpectedConditions); err != nil {
		return nil, err
	}
	if err := decodeJSON(used, &t.GearUsed); err != nil {
		return nil, err
	}
	if wxData.Valid && wxData.String != "" {
		t.WeatherData = &models.WeatherData{}
		if err := decodeJSON(wxData, t.WeatherData); err != nil {
			return nil, err
		}
	}
	t.CreatedAt = created.Time
	return &t, nil
}

// ── Chat Store ──────────────────────────────────────────────

func (s *SQLStore) CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.Message == "" {
		return &models.ValidationError{Field: "message", Reason: "is required"}
	}
	msg.ID = NewID()
	msg.Timestamp = time.Now().UTC()

	calls, err := jsonArg(msg.FunctionCalls)
	if err != nil {
		return err
	}
	err = s.exec(ctx, `INSERT INTO chat_messages (id, message, response, function_calls, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Message, msg.Response, calls, s.d.timeArg(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}

func (s *SQLStore) ChatHistory(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	query := `SELECT id, message, response, function_calls, created_at FROM chat_messages ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	defer rows.Close()

	result := make([]models.ChatMessage, 0)
	for rows.Next() {
		var (
			m       models.ChatMessage
			calls   sql.NullString
			created scanTime
		)
		if err := rows.Scan(&m.ID, &m.Message, &m.Response, &calls, &created); err != nil {
			return nil, err
		}
		if err := decodeJSON(calls, &m.FunctionCalls); err != nil {
			return nil, err
		}
		m.Timestamp = created.Time
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest first from the query; callers want oldest first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// ── Column helpers ──────────────────────────────────────────

// jsonArg encodes v as a JSON string, or SQL NULL when v is empty.
func jsonArg(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]float64:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]map[string]interface{}:
		if len(t) == 0 {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// scanTime accepts native timestamps (postgres) and RFC 3339 text (sqlite).
type scanTime struct {
	Time time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (st *scanTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		st.Time = time.Time{}
		return nil
	case time.Time:
		st.Time = v.UTC()
		return nil
	case []byte:
		return st.parse(string(v))
	case string:
		return st.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (st *scanTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			st.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
