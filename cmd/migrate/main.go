package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kdimtricp/cinesearch/internal/config"
	"github.com/kdimtricp/cinesearch/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	dbConfig := cfg.Database()
	dbConfig.Type = defaultDBType(cfg.DBType)

	var (
		dbType         = flag.String("db", dbConfig.Type, "Database type (postgres or sqlite)")
		host           = flag.String("host", dbConfig.Host, "Database host")
		port           = flag.Int("port", dbConfig.Port, "Database port")
		user           = flag.String("user", dbConfig.User, "Database user")
		password       = flag.String("password", dbConfig.Password, "Database password")
		dbName         = flag.String("name", dbConfig.Name, "Database name")
		sqlitePath     = flag.String("path", dbConfig.SQLitePath, "SQLite database path")
		migrationsPath = flag.String("migrations", cfg.MigrationsPath, "Path to migrations directory")
		status         = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	dbConfig = database.Config{
		Type:       *dbType,
		Host:       *host,
		Port:       *port,
		User:       *user,
		Password:   *password,
		Name:       *dbName,
		SQLitePath: *sqlitePath,
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Conn(), dbConfig.Type)

	if !*status {
		fmt.Printf("Running migrations from %s...\n", *migrationsPath)
		if err := db.RunMigrations(*migrationsPath); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		fmt.Println("Migrations completed successfully!")
		return
	}

	if err := migrator.Initialize(); err != nil {
		log.Fatal("Failed to initialize migrator:", err)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		log.Fatal("Failed to get applied migrations:", err)
	}

	migrations, err := migrator.LoadMigrations(*migrationsPath)
	if err != nil {
		log.Fatal("Failed to load migrations:", err)
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range migrations {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}

// defaultDBType picks the -db default from DB_TYPE. The bolt and memory
// stores have no SQL schema, so they fall back to postgres; -db overrides.
func defaultDBType(envType string) string {
	if envType == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}
