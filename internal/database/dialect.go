package database

import (
	"database/sql"
	"regexp"
	"strconv"

	migratedb "github.com/golang-migrate/migrate/v4/database"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// MigrationDriver wraps a dedicated connection for golang-migrate
	MigrationDriver(db *sql.DB) (migratedb.Driver, error)

	// UpsertUserProfileQuery inserts or fully replaces a user profile
	UpsertUserProfileQuery() string

	// LinkUserFamilyQuery inserts a user profile or updates only its family link
	LinkUserFamilyQuery() string

	// ResetSequenceQuery realigns an id sequence after explicit-id inserts, "" if not needed
	ResetSequenceQuery(table string) string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// Column order shared by both user upsert statements:
// id, email, full_name, role, family_id, coin_balance, created_at, updated_at
const userInsertPrefix = "INSERT INTO users (id, email, full_name, role, family_id, coin_balance, created_at, updated_at) " +
	"VALUES (?, ?, ?, ?, ?, ?, ?, ?)"

// onConflictUpsertUser is valid for both SQLite (3.24+) and PostgreSQL
const onConflictUpsertUser = userInsertPrefix + " ON CONFLICT (id) DO UPDATE SET " +
	"email = excluded.email, full_name = excluded.full_name, role = excluded.role, " +
	"family_id = excluded.family_id, coin_balance = excluded.coin_balance, updated_at = excluded.updated_at"

const onConflictLinkFamily = userInsertPrefix + " ON CONFLICT (id) DO UPDATE SET " +
	"family_id = excluded.family_id, updated_at = excluded.updated_at"

// placeholderRegexp matches ? placeholders
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
