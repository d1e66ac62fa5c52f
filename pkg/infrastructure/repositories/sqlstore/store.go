// Package sqlstore implements the relief store on database/sql. It runs on
// SQLite (modernc.org/sqlite, driver "sqlite") and PostgreSQL (lib/pq,
// driver "postgres").
//
// Atomic maps to a database transaction. Resource and request rows carry a
// version column; an update that matches no row at the expected version
// returns repositories.ErrStaleWrite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQL-backed repositories.Store
type Store struct {
	db     *sql.DB
	driver string
	reader *tx
}

var _ repositories.Store = (*Store)(nil)

// Open connects to the database and creates the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection serializes transactions.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, driver), nil
}

// New wraps an open database whose schema already exists
func New(db *sql.DB, driver string) *Store {
	return &Store{
		db:     db,
		driver: driver,
		reader: &tx{q: db, driver: driver},
	}
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic runs fn in a database transaction, committing only if fn succeeds
func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domainerrors.PersistenceFailure(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{q: sqlTx, driver: s.driver}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return domainerrors.PersistenceFailure(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *Store) GetDisaster(ctx context.Context, id entities.DisasterID) (*entities.Disaster, error) {
	return s.reader.GetDisaster(ctx, id)
}

func (s *Store) ListDisasters(ctx context.Context) ([]*entities.Disaster, error) {
	return s.reader.ListDisasters(ctx)
}

func (s *Store) GetShelter(ctx context.Context, id entities.ShelterID) (*entities.Shelter, error) {
	return s.reader.GetShelter(ctx, id)
}

func (s *Store) ListShelters(ctx context.Context, scope entities.Scope) ([]*entities.Shelter, error) {
	return s.reader.ListShelters(ctx, scope)
}

func (s *Store) GetResource(ctx context.Context, id entities.ResourceID) (*entities.Resource, error) {
	return s.reader.GetResource(ctx, id)
}

func (s *Store) ListResources(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	return s.reader.ListResources(ctx, scope)
}

func (s *Store) GetRequest(ctx context.Context, id entities.RequestID) (*entities.Request, error) {
	return s.reader.GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, filter repositories.RequestFilter) ([]*entities.Request, error) {
	return s.reader.ListRequests(ctx, filter)
}

// tx runs queries against either the database or an open transaction
type tx struct {
	q      queryer
	driver string
}

var _ repositories.Tx = (*tx)(nil)

// rebind rewrites ? placeholders to $n for PostgreSQL
func (t *tx) rebind(query string) string {
	if t.driver != DriverPostgres {
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

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.q.QueryContext(ctx, t.rebind(query), args...)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.q.QueryRowContext(ctx, t.rebind(query), args...)
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.q.ExecContext(ctx, t.rebind(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

// Disasters

const disasterColumns = `id, name, type, severity, status, started_at`

func scanDisaster(row scanner) (*entities.Disaster, error) {
	var (
		d                 entities.Disaster
		status, startedAt string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Type, &d.Severity, &status, &startedAt); err != nil {
		return nil, err
	}
	var err error
	if d.Status, err = entities.ParseDisasterStatus(status); err != nil {
		return nil, err
	}
	if d.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *tx) GetDisaster(ctx context.Context, id entities.DisasterID) (*entities.Disaster, error) {
	d, err := scanDisaster(t.queryRow(ctx, `SELECT `+disasterColumns+` FROM disaster WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFound("disaster", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read disaster %s: %w", id, err)
	}
	return d, nil
}

func (t *tx) ListDisasters(ctx context.Context) ([]*entities.Disaster, error) {
	rows, err := t.query(ctx, `SELECT `+disasterColumns+` FROM disaster ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list disasters: %w", err)
	}
	defer rows.Close()

	var out []*entities.Disaster
	for rows.Next() {
		d, err := scanDisaster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disaster: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *tx) SaveDisaster(ctx context.Context, d *entities.Disaster) error {
	_, err := t.exec(ctx, `
		INSERT INTO disaster (`+disasterColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			severity = excluded.severity,
			status = excluded.status,
			started_at = excluded.started_at`,
		string(d.ID), d.Name, d.Type, d.Severity, d.Status.String(), formatTime(d.StartedAt))
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(d.ID))
	}
	return nil
}

// Shelters

const shelterColumns = `id, disaster_id, name, location, capacity, current_occupancy, status, updated_at`

func scanShelter(row scanner) (*entities.Shelter, error) {
	var (
		sh                entities.Shelter
		status, updatedAt string
	)
	if err := row.Scan(&sh.ID, &sh.DisasterID, &sh.Name, &sh.Location, &sh.Capacity,
		&sh.CurrentOccupancy, &status, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if sh.Status, err = entities.ParseOperationalStatus(status); err != nil {
		return nil, err
	}
	if sh.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (t *tx) GetShelter(ctx context.Context, id entities.ShelterID) (*entities.Shelter, error) {
	sh, err := scanShelter(t.queryRow(ctx, `SELECT `+shelterColumns+` FROM shelter WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFound("shelter", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shelter %s: %w", id, err)
	}
	return sh, nil
}

func (t *tx) ListShelters(ctx context.Context, scope entities.Scope) ([]*entities.Shelter, error) {
	rows, err := t.query(ctx, `
		SELECT `+shelterColumns+` FROM shelter
		WHERE ? = '' OR disaster_id = '' OR disaster_id = ?
		ORDER BY id`,
		string(scope.DisasterID), string(scope.DisasterID))
	if err != nil {
		return nil, fmt.Errorf("failed to list shelters: %w", err)
	}
	defer rows.Close()

	var out []*entities.Shelter
	for rows.Next() {
		sh, err := scanShelter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shelter: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// LockShelters takes row locks on the shelters in ID order. SQLite has no
// FOR UPDATE and its single connection already serializes transactions.
func (t *tx) LockShelters(ctx context.Context, ids ...entities.ShelterID) error {
	if t.driver != DriverPostgres || len(ids) == 0 {
		return nil
	}
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = string(id)
	}
	sort.Strings(sorted)
	args := make([]any, len(sorted))
	for i, id := range sorted {
		args[i] = id
	}

	rows, err := t.query(ctx, lockSheltersQuery(len(args)), args...)
	if err != nil {
		return domainerrors.PersistenceFailure(fmt.Errorf("failed to lock shelters: %w", err), sorted...)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func lockSheltersQuery(n int) string {
	return `SELECT id FROM shelter WHERE id IN (` + placeholders(n) + `) ORDER BY id FOR UPDATE`
}

func (t *tx) SaveShelter(ctx context.Context, sh *entities.Shelter) error {
	_, err := t.exec(ctx, `
		INSERT INTO shelter (`+shelterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			disaster_id = excluded.disaster_id,
			name = excluded.name,
			location = excluded.location,
			capacity = excluded.capacity,
			current_occupancy = excluded.current_occupancy,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		string(sh.ID), string(sh.DisasterID), sh.Name, sh.Location, int64(sh.Capacity),
		int64(sh.CurrentOccupancy), sh.Status.String(), formatTime(sh.UpdatedAt))
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(sh.ID))
	}
	return nil
}

// Resources

const resourceColumns = `id, disaster_id, name, type, unit, stock_level, minimum_threshold, version`

func scanResource(row scanner) (*entities.Resource, error) {
	var (
		r            entities.Resource
		resourceType string
	)
	if err := row.Scan(&r.ID, &r.DisasterID, &r.Name, &resourceType, &r.Unit,
		&r.StockLevel, &r.MinimumThreshold, &r.Version); err != nil {
		return nil, err
	}
	var err error
	if r.Type, err = entities.ParseResourceType(resourceType); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *tx) GetResource(ctx context.Context, id entities.ResourceID) (*entities.Resource, error) {
	r, err := scanResource(t.queryRow(ctx, `SELECT `+resourceColumns+` FROM resource WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFound("resource", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", id, err)
	}
	return r, nil
}

func (t *tx) ListResources(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	rows, err := t.query(ctx, `
		SELECT `+resourceColumns+` FROM resource
		WHERE ? = '' OR disaster_id = '' OR disaster_id = ?
		ORDER BY id`,
		string(scope.DisasterID), string(scope.DisasterID))
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []*entities.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *tx) SaveResource(ctx context.Context, r *entities.Resource) error {
	res, err := t.exec(ctx, `
		UPDATE resource SET
			disaster_id = ?, name = ?, type = ?, unit = ?,
			stock_level = ?, minimum_threshold = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(r.DisasterID), r.Name, r.Type.String(), r.Unit,
		int64(r.StockLevel), int64(r.MinimumThreshold), string(r.ID), r.Version)
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(r.ID))
	}
	if updated, err := res.RowsAffected(); err != nil {
		return domainerrors.PersistenceFailure(err, string(r.ID))
	} else if updated == 1 {
		r.Version++
		return nil
	}

	exists, err := t.exists(ctx, "resource", string(r.ID))
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(r.ID))
	}
	if exists {
		return repositories.ErrStaleWrite
	}

	_, err = t.exec(ctx, `INSERT INTO resource (`+resourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.DisasterID), r.Name, r.Type.String(), r.Unit,
		int64(r.StockLevel), int64(r.MinimumThreshold), r.Version+1)
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(r.ID))
	}
	r.Version++
	return nil
}

// Requests

const requestColumns = `r.id, r.shelter_id, r.resource_id, r.quantity_requested, r.quantity_fulfilled,
	r.priority, r.status, r.requested_at, r.comments, r.version`

func scanRequest(row scanner) (*entities.Request, error) {
	var (
		req                          entities.Request
		status, requestedAt, comment string
	)
	if err := row.Scan(&req.ID, &req.ShelterID, &req.ResourceID, &req.QuantityRequested,
		&req.QuantityFulfilled, &req.Priority, &status, &requestedAt, &comment, &req.Version); err != nil {
		return nil, err
	}
	var err error
	if req.Status, err = entities.ParseRequestStatus(status); err != nil {
		return nil, err
	}
	if req.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(comment), &req.Comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	if len(req.Comments) == 0 {
		req.Comments = nil
	}
	return &req, nil
}

func (t *tx) GetRequest(ctx context.Context, id entities.RequestID) (*entities.Request, error) {
	req, err := scanRequest(t.queryRow(ctx, `SELECT `+requestColumns+` FROM request r WHERE r.id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFound("request", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request %s: %w", id, err)
	}
	return req, nil
}

// ListRequests returns matching requests oldest first (FIFO)
func (t *tx) ListRequests(ctx context.Context, filter repositories.RequestFilter) ([]*entities.Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.Scope.DisasterID != "" {
		where = append(where, "(s.disaster_id = '' OR s.disaster_id = ?)")
		args = append(args, string(filter.Scope.DisasterID))
	}
	if filter.ResourceID != "" {
		where = append(where, "r.resource_id = ?")
		args = append(args, string(filter.ResourceID))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "r.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, st.String())
		}
	}
	if len(filter.ShelterIDs) > 0 {
		where = append(where, "r.shelter_id IN ("+placeholders(len(filter.ShelterIDs))+")")
		for _, id := range filter.ShelterIDs {
			args = append(args, string(id))
		}
	}

	query := `SELECT ` + requestColumns + ` FROM request r JOIN shelter s ON s.id = r.shelter_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []*entities.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) SaveRequest(ctx context.Context, req *entities.Request) error {
	comments, err := json.Marshal(nonNil(req.Comments))
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(req.ID))
	}

	res, err := t.exec(ctx, `
		UPDATE request SET
			shelter_id = ?, resource_id = ?, quantity_requested = ?, quantity_fulfilled = ?,
			priority = ?, status = ?, requested_at = ?, comments = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(req.ShelterID), string(req.ResourceID), int64(req.QuantityRequested),
		int64(req.QuantityFulfilled), int(req.Priority), req.Status.String(),
		formatTime(req.RequestedAt), string(comments), string(req.ID), req.Version)
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(req.ID))
	}
	if updated, err := res.RowsAffected(); err != nil {
		return domainerrors.PersistenceFailure(err, string(req.ID))
	} else if updated == 1 {
		req.Version++
		return nil
	}

	exists, err := t.exists(ctx, "request", string(req.ID))
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(req.ID))
	}
	if exists {
		return repositories.ErrStaleWrite
	}

	_, err = t.exec(ctx, `
		INSERT INTO request (id, shelter_id, resource_id, quantity_requested, quantity_fulfilled,
			priority, status, requested_at, comments, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.ID), string(req.ShelterID), string(req.ResourceID), int64(req.QuantityRequested),
		int64(req.QuantityFulfilled), int(req.Priority), req.Status.String(),
		formatTime(req.RequestedAt), string(comments), req.Version+1)
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(req.ID))
	}
	req.Version++
	return nil
}

func (t *tx) DeleteRequest(ctx context.Context, id entities.RequestID) error {
	res, err := t.exec(ctx, `DELETE FROM request WHERE id = ?`, string(id))
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(id))
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return domainerrors.PersistenceFailure(err, string(id))
	}
	if deleted == 0 {
		return domainerrors.NotFound("request", string(id))
	}
	return nil
}

func (t *tx) exists(ctx context.Context, table, id string) (bool, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nonNil(comments []string) []string {
	if comments == nil {
		return []string{}
	}
	return comments
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
