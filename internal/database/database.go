package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/irtelemetry/pitcam/internal/model"
)

// Supported storage types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config selects the recording database.
type Config struct {
	Type string
	Path string // sqlite file, empty for in-memory
	DSN  string // postgres connection string
}

// Manager handles database connections and operations.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Kind   string
	Path   string
	Logger zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// IsPostgresDSN reports whether target looks like a Postgres connection
// string rather than a file path.
func IsPostgresDSN(target string) bool {
	return strings.HasPrefix(target, "postgres://") ||
		strings.HasPrefix(target, "postgresql://") ||
		strings.Contains(target, "host=")
}

// ConfigFor builds a Config for a single path-or-DSN target.
func ConfigFor(target string) Config {
	if IsPostgresDSN(target) {
		return Config{Type: TypePostgres, DSN: target}
	}
	return Config{Type: TypeSQLite, Path: target}
}

// Connect opens the configured database and validates the connection.
func (m *Manager) Connect(cfg Config) error {
	var err error

	switch strings.ToLower(cfg.Type) {
	case TypePostgres:
		m.DB, err = OpenPostgres(cfg.DSN)
		m.Kind = TypePostgres
	case TypeSQLite, "":
		m.DB, err = OpenSqlite(cfg.Path)
		m.Kind = TypeSQLite
		m.Path = cfg.Path
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s DB: %w", m.Kind, err)
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := m.SqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	if m.Kind == TypePostgres {
		m.SqlDB.SetMaxOpenConns(10)
	}

	m.Logger.Info().Str("kind", m.Kind).Str("path", m.Path).Msg("Connected to database")
	return nil
}

// Setup migrates the recording schema.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.SqlDB = nil
	m.DB = nil
	return err
}

// DumpToDisk vacuums a sqlite database into path, replacing any file there.
func (m *Manager) DumpToDisk(path string) error {
	if m.Kind != TypeSQLite {
		return fmt.Errorf("dump is only supported for sqlite, have %s", m.Kind)
	}
	start := time.Now()
	if err := DumpSqliteToDisk(m.DB, path); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped DB to disk")
	return nil
}

// OpenPostgres returns a connection to the Postgres database at dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn not set")
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// DumpSqliteToDisk vacuums db into a disk file.
func DumpSqliteToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	if err := db.Exec("VACUUM INTO 'file:" + sqliteFilePath + "';").Error; err != nil {
		return fmt.Errorf("error dumping DB to disk: %w", err)
	}
	return nil
}
