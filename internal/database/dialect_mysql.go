package database

import (
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
)

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces parseTime so DATETIME columns scan into time.Time, and
// multiStatements so migration files can hold several statements.
func (d *MySQLDialect) DSN(config DialectConfig) string {
	cfg, err := mysql.ParseDSN(config.URL)
	if err != nil {
		// let sql.Open report the malformed DSN
		return config.URL
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN()
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
	}

	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) MigrationDriver(db *sql.DB) (migratedb.Driver, error) {
	return migratemysql.WithInstance(db, &migratemysql.Config{})
}

func (d *MySQLDialect) UpsertUserProfileQuery() string {
	return userInsertPrefix + " ON DUPLICATE KEY UPDATE " +
		"email = VALUES(email), full_name = VALUES(full_name), role = VALUES(role), " +
		"family_id = VALUES(family_id), coin_balance = VALUES(coin_balance), updated_at = VALUES(updated_at)"
}

func (d *MySQLDialect) LinkUserFamilyQuery() string {
	return userInsertPrefix + " ON DUPLICATE KEY UPDATE " +
		"family_id = VALUES(family_id), updated_at = VALUES(updated_at)"
}

func (d *MySQLDialect) ResetSequenceQuery(table string) string {
	// AUTO_INCREMENT advances past explicit ids on its own
	return ""
}
