package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"carecoins/internal/database"

	"github.com/sirupsen/logrus"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// backupTables lists tables in dependency order; clearing runs in reverse
var backupTables = []string{"families", "actors", "users", "activities"}

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string           `json:"version"`
	ExportedAt   time.Time        `json:"exported_at"`
	DatabaseType string           `json:"database_type"`
	Families     []FamilyBackup   `json:"families"`
	Actors       []ActorBackup    `json:"actors"`
	Users        []UserBackup     `json:"users"`
	Activities   []ActivityBackup `json:"activities"`
}

// FamilyBackup represents a family record for backup
type FamilyBackup struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	PIN             string    `json:"pin"`
	CoinsStartMonth int       `json:"coins_start_month"`
	CoinsPending    int       `json:"coins_pending"`
	CoinsPaid       int       `json:"coins_paid"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActorBackup represents an actor record for backup
type ActorBackup struct {
	ID              int64     `json:"id"`
	FamilyID        int64     `json:"family_id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	CoinsStartMonth int       `json:"coins_start_month"`
	CreatedAt       time.Time `json:"created_at"`
}

// UserBackup represents a user profile for backup
type UserBackup struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Role        string    `json:"role"`
	FamilyID    *int64    `json:"family_id"`
	CoinBalance int       `json:"coin_balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActivityBackup represents an activity for backup
type ActivityBackup struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	ActorID     *int64    `json:"actor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	EndsAt      time.Time `json:"ends_at"`
	UserID      string    `json:"user_id"`
	FamilyID    int64     `json:"family_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db  *database.DB
	log logrus.FieldLogger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log logrus.FieldLogger) *BackupService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BackupService{db: db, log: log}
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}

	s.log.WithField("path", outputPath).Info("Database exported successfully")
	return nil
}

// ExportToWriter writes the backup as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: "universal",
		Families:     []FamilyBackup{},
		Actors:       []ActorBackup{},
		Users:        []UserBackup{},
		Activities:   []ActivityBackup{},
	}

	if err := s.exportFamilies(ctx, backup); err != nil {
		return fmt.Errorf("failed to export families: %w", err)
	}
	if err := s.exportActors(ctx, backup); err != nil {
		return fmt.Errorf("failed to export actors: %w", err)
	}
	if err := s.exportUsers(ctx, backup); err != nil {
		return fmt.Errorf("failed to export users: %w", err)
	}
	if err := s.exportActivities(ctx, backup); err != nil {
		return fmt.Errorf("failed to export activities: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"families":   len(backup.Families),
		"actors":     len(backup.Actors),
		"users":      len(backup.Users),
		"activities": len(backup.Activities),
	}).Info("Export complete")
	return nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clear bool) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clear)
}

// ImportFromReader restores a backup in a single transaction. With clear set,
// existing rows are deleted first.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, clear bool) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	s.log.WithFields(logrus.Fields{"version": backup.Version, "exported_at": backup.ExportedAt}).Info("Starting database import")

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if clear {
		if err := clearTables(ctx, tx); err != nil {
			return err
		}
	}

	// Import in order of dependencies
	if err := importFamilies(ctx, tx, backup.Families); err != nil {
		return fmt.Errorf("failed to import families: %w", err)
	}
	if err := importActors(ctx, tx, backup.Actors); err != nil {
		return fmt.Errorf("failed to import actors: %w", err)
	}
	if err := importUsers(ctx, tx, backup.Users); err != nil {
		return fmt.Errorf("failed to import users: %w", err)
	}
	if err := importActivities(ctx, tx, backup.Activities); err != nil {
		return fmt.Errorf("failed to import activities: %w", err)
	}

	for _, table := range []string{"families", "actors", "activities"} {
		if q := tx.GetDialect().ResetSequenceQuery(table); q != "" {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("failed to reset %s sequence: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"families":   len(backup.Families),
		"actors":     len(backup.Actors),
		"users":      len(backup.Users),
		"activities": len(backup.Activities),
	}).Info("Database import completed successfully")
	return nil
}

func clearTables(ctx context.Context, tx database.DBTX) error {
	for i := len(backupTables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+backupTables[i]); err != nil {
			return fmt.Errorf("failed to clear %s: %w", backupTables[i], err)
		}
	}
	return nil
}

func (s *BackupService) exportFamilies(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, pin, coins_start_month, coins_pending, coins_paid, created_at, updated_at FROM families ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var f FamilyBackup
		if err := rows.Scan(&f.ID, &f.Name, &f.PIN, &f.CoinsStartMonth, &f.CoinsPending, &f.CoinsPaid, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return err
		}
		backup.Families = append(backup.Families, f)
	}
	return rows.Err()
}

func (s *BackupService) exportActors(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, family_id, name, type, coins_start_month, created_at FROM actors ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a ActorBackup
		if err := rows.Scan(&a.ID, &a.FamilyID, &a.Name, &a.Type, &a.CoinsStartMonth, &a.CreatedAt); err != nil {
			return err
		}
		backup.Actors = append(backup.Actors, a)
	}
	return rows.Err()
}

func (s *BackupService) exportUsers(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, email, full_name, role, family_id, coin_balance, created_at, updated_at FROM users ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserBackup
		var familyID sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &familyID, &u.CoinBalance, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		u.FamilyID = nullableInt64(familyID)
		backup.Users = append(backup.Users, u)
	}
	return rows.Err()
}

func (s *BackupService) exportActivities(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, type, actor_id, scheduled_at, ends_at, user_id, family_id, created_at FROM activities ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a ActivityBackup
		var actorID sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Title, &a.Type, &actorID, &a.ScheduledAt, &a.EndsAt, &a.UserID, &a.FamilyID, &a.CreatedAt); err != nil {
			return err
		}
		a.ActorID = nullableInt64(actorID)
		backup.Activities = append(backup.Activities, a)
	}
	return rows.Err()
}

func importFamilies(ctx context.Context, tx database.DBTX, families []FamilyBackup) error {
	query := "INSERT INTO families (id, name, pin, coins_start_month, coins_pending, coins_paid, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	for _, f := range families {
		if _, err := tx.ExecContext(ctx, query, f.ID, f.Name, f.PIN, f.CoinsStartMonth, f.CoinsPending, f.CoinsPaid, f.CreatedAt, f.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import family %d: %w", f.ID, err)
		}
	}
	return nil
}

func importActors(ctx context.Context, tx database.DBTX, actors []ActorBackup) error {
	query := "INSERT INTO actors (id, family_id, name, type, coins_start_month, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	for _, a := range actors {
		if _, err := tx.ExecContext(ctx, query, a.ID, a.FamilyID, a.Name, a.Type, a.CoinsStartMonth, a.CreatedAt); err != nil {
			return fmt.Errorf("failed to import actor %d: %w", a.ID, err)
		}
	}
	return nil
}

func importUsers(ctx context.Context, tx database.DBTX, users []UserBackup) error {
	query := "INSERT INTO users (id, email, full_name, role, family_id, coin_balance, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, query, u.ID, u.Email, u.FullName, u.Role, nullIfNil(u.FamilyID), u.CoinBalance, u.CreatedAt, u.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import user %s: %w", u.ID, err)
		}
	}
	return nil
}

func importActivities(ctx context.Context, tx database.DBTX, activities []ActivityBackup) error {
	query := "INSERT INTO activities (id, title, type, actor_id, scheduled_at, ends_at, user_id, family_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	for _, a := range activities {
		if _, err := tx.ExecContext(ctx, query, a.ID, a.Title, a.Type, nullIfNil(a.ActorID), a.ScheduledAt, a.EndsAt, a.UserID, a.FamilyID, a.CreatedAt); err != nil {
			return fmt.Errorf("failed to import activity %d: %w", a.ID, err)
		}
	}
	return nil
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullIfNil(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
