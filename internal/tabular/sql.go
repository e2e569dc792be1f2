// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/facility-match/pkg/types"
)

// Driver names accepted by LoadSQL.
const (
	DriverSQLite    = "sqlite3"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
)

// NormalizeDriver maps common aliases to a registered database/sql driver
// name.
func NormalizeDriver(d string) (string, error) {
	switch strings.ToLower(d) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlserver", "mssql":
		return DriverSQLServer, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", d)
	}
}

// LoadSQL reads a collection from a database. When query is empty the
// whole of table is read; when table is empty too, the database must hold
// exactly one table.
func LoadSQL(ctx context.Context, driver, dsn, table, query string) (types.Collection, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return types.Collection{}, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return types.Collection{}, fmt.Errorf("opening %s database: %w", driver, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return types.Collection{}, fmt.Errorf("connecting to %s database: %w", driver, err)
	}

	if query == "" {
		if table == "" {
			table, err = soleTable(ctx, db, driver)
			if err != nil {
				return types.Collection{}, err
			}
		}
		query = "SELECT * FROM " + quoteIdent(driver, table)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return types.Collection{}, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	c, err := scanRows(rows)
	if err != nil {
		return types.Collection{}, err
	}
	harmonize(c)
	return c, nil
}

func scanRows(rows *sql.Rows) (types.Collection, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return types.Collection{}, fmt.Errorf("reading columns: %w", err)
	}
	header := make([]string, len(cols))
	dbTypes := make([]string, len(cols))
	for i, ct := range cols {
		header[i] = ct.Name()
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}
	fields := uniqueFields(header)

	var records []types.Record
	cells := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return types.Collection{}, fmt.Errorf("scanning row %d: %w", len(records)+1, err)
		}
		rec := make(types.Record, len(fields))
		for i, f := range fields {
			rec[f] = sqlValue(cells[i], dbTypes[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return types.Collection{}, fmt.Errorf("iterating rows: %w", err)
	}
	return types.Collection{Fields: fields, Records: records}, nil
}

// sqlValue converts a scanned cell. Drivers that use a text protocol hand
// back numbers as bytes, so byte slices are typed by the column's declared
// database type.
func sqlValue(x any, dbType string) types.Value {
	switch t := x.(type) {
	case []byte:
		return typedText(string(t), dbType)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return types.Text(t.Format(time.DateOnly))
		}
		return types.Text(t.Format(time.DateTime))
	default:
		return types.ValueOf(x)
	}
}

func typedText(s, dbType string) types.Value {
	switch {
	case isIntegerType(dbType):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return types.Int(n)
		}
	case strings.Contains(dbType, "DECIMAL"), strings.Contains(dbType, "NUMERIC"),
		strings.Contains(dbType, "FLOAT"), strings.Contains(dbType, "DOUBLE"),
		strings.Contains(dbType, "REAL"), strings.Contains(dbType, "MONEY"):
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return types.Float(f)
		}
	}
	return types.Text(s)
}

// integerTypes are the integer column types reported by the supported
// drivers, with any display width or UNSIGNED suffix removed.
var integerTypes = map[string]bool{
	"INT": true, "INTEGER": true, "TINYINT": true, "SMALLINT": true,
	"MEDIUMINT": true, "BIGINT": true, "INT2": true, "INT4": true, "INT8": true,
}

func isIntegerType(dbType string) bool {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	t = strings.TrimPrefix(t, "UNSIGNED ")
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	return integerTypes[t]
}

func soleTable(ctx context.Context, db *sql.DB, driver string) (string, error) {
	var q string
	switch driver {
	case DriverSQLite:
		q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case DriverMySQL:
		q = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
	default:
		q = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
	}

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", fmt.Errorf("listing tables: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}

	switch len(names) {
	case 0:
		return "", fmt.Errorf("database has no tables")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("database has %d tables (%s); choose one with --table", len(names), strings.Join(names, ", "))
	}
}

func quoteIdent(driver, name string) string {
	switch driver {
	case DriverMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DriverSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// sqliteDSN opens a database file read-only.
func sqliteDSN(path string) string {
	return "file:" + path + "?mode=ro"
}
