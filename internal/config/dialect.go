package config

import (
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Supported panel database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// dialect captures the handful of places where the panel schema and queries
// differ between the supported databases.
type dialect struct {
	name       string
	sqlDriver  string // name registered with database/sql
	returnsID  bool   // INSERT ... RETURNING id instead of LastInsertId
	columnDefs map[string]string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:      DriverSQLite,
		sqlDriver: "sqlite",
		columnDefs: map[string]string{
			"{{pk}}":   "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{ref}}":  "INTEGER",
			"{{str}}":  "TEXT",
			"{{bool}}": "INTEGER",
			"{{ts}}":   "DATETIME",
		},
	},
	DriverPostgres: {
		name:      DriverPostgres,
		sqlDriver: "pgx",
		returnsID: true,
		columnDefs: map[string]string{
			"{{pk}}":   "BIGSERIAL PRIMARY KEY",
			"{{ref}}":  "BIGINT",
			"{{str}}":  "TEXT",
			"{{bool}}": "BOOLEAN",
			"{{ts}}":   "TIMESTAMPTZ",
		},
	},
	DriverMySQL: {
		name:      DriverMySQL,
		sqlDriver: "mysql",
		columnDefs: map[string]string{
			"{{pk}}":   "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"{{ref}}":  "BIGINT",
			"{{str}}":  "VARCHAR(255)",
			"{{bool}}": "TINYINT(1)",
			"{{ts}}":   "DATETIME(6)",
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q (available: sqlite, postgres, mysql)", driver)
	}
	return d, nil
}

// expand substitutes the column type placeholders in a DDL statement.
func (d dialect) expand(ddl string) string {
	for placeholder, def := range d.columnDefs {
		ddl = strings.ReplaceAll(ddl, placeholder, def)
	}
	return ddl
}

// normalizeDSN applies driver-specific DSN requirements. MySQL needs
// parseTime so DATETIME columns scan into time.Time.
func (d dialect) normalizeDSN(dsn string) (string, error) {
	if d.name != DriverMySQL {
		return dsn, nil
	}
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint rejecting a write.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// isForeignKeyViolation reports whether err came from a foreign key rejecting
// a write.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1451 || myErr.Number == 1452
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// classifyWriteError maps constraint violations onto the store's sentinel
// errors, leaving everything else wrapped as-is.
func classifyWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
