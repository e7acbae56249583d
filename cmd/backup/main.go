package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carecoins/internal/config"
	"carecoins/internal/database"
	"carecoins/internal/logging"
	"carecoins/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New("carecoins-backup", cfg.LogLevel, "text")

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Bring the schema up to date so an import into a fresh database works
	if err := db.RunMigrations(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	backupService := service.NewBackupService(db, log)
	ctx := context.Background()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, log, backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, log, backupService, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, log *logging.Logger, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.WithError(err).Fatal("Failed to create output directory")
		}
	}

	log.WithField("path", outputPath).Info("Exporting database")
	if err := backupService.Export(ctx, outputPath); err != nil {
		log.WithError(err).Fatal("Export failed")
	}

	if fileInfo, err := os.Stat(outputPath); err == nil {
		log.Infof("Export complete! File size: %.2f MB", float64(fileInfo.Size())/1024/1024)
	}
}

func handleImport(ctx context.Context, log *logging.Logger, backupService *service.BackupService, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.WithField("path", inputPath).Fatal("Input file does not exist")
	}

	if clearData {
		fmt.Print("WARNING: This will delete all existing data. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Info("Import cancelled")
			return
		}
	}

	log.WithField("path", inputPath).Info("Importing database")
	if err := backupService.Import(ctx, inputPath, clearData); err != nil {
		log.WithError(err).Fatal("Import failed")
	}

	log.Info("Import complete!")
}

func printUsage() {
	fmt.Println("CareCoins Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file")
	fmt.Println("  backup import [options]    Import database from JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  backup export -output backups/june.json")
	fmt.Println("  backup import -input backups/june.json -clear")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./carecoins.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
