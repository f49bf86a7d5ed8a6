package regionsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/model"
)

const (
	selectRegionsSQL = `SELECT name, points FROM regions ORDER BY slot`
	createRegionsSQL = `CREATE TABLE IF NOT EXISTS regions (
	slot   INTEGER PRIMARY KEY,
	name   TEXT NOT NULL UNIQUE,
	points TEXT NOT NULL
)`
)

// sqlTarget splits a source string into a database/sql driver name and DSN.
func sqlTarget(source string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(source, "sqlite://"):
		return "sqlite", strings.TrimPrefix(source, "sqlite://"), nil
	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		return "postgres", source, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

// LoadSQL reads regions from the regions table of a sqlite:// or postgres://
// database. points holds a JSON array of [x, y] pairs; slot gives the order.
func LoadSQL(ctx context.Context, source string) (*Document, error) {
	driver, dsn, err := sqlTarget(source)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	defer db.Close()
	return QueryRegions(ctx, db)
}

// QueryRegions reads the regions table through an open handle.
func QueryRegions(ctx context.Context, db *sql.DB) (*Document, error) {
	rows, err := db.QueryContext(ctx, selectRegionsSQL)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	doc := &Document{}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		var points [][]float64
		if err := json.Unmarshal([]byte(raw), &points); err != nil {
			return nil, fmt.Errorf("%w: region %q points: %w", core.ErrConfiguration, name, err)
		}
		rd := rawDocument{Regions: []rawRegion{{Name: name, Points: points}}}
		converted, err := rd.toDocument()
		if err != nil {
			return nil, err
		}
		doc.Regions = append(doc.Regions, converted.Regions...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return doc, nil
}

// SaveSQL replaces the regions table contents with regions, in slot order.
func SaveSQL(ctx context.Context, source string, regions []model.Region) error {
	driver, dsn, err := sqlTarget(source)
	if err != nil {
		return err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", driver, err)
	}
	defer db.Close()

	insert := `INSERT INTO regions (slot, name, points) VALUES (?, ?, ?)`
	if driver == "postgres" {
		insert = `INSERT INTO regions (slot, name, points) VALUES ($1, $2, $3)`
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createRegionsSQL); err != nil {
		return fmt.Errorf("create regions table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM regions`); err != nil {
		return fmt.Errorf("clear regions: %w", err)
	}
	for slot, r := range fromRegions(regions).Regions {
		points, err := json.Marshal(r.Points)
		if err != nil {
			return fmt.Errorf("encode region %q: %w", r.Name, err)
		}
		if _, err := tx.ExecContext(ctx, insert, slot, r.Name, string(points)); err != nil {
			return fmt.Errorf("insert region %q: %w", r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
