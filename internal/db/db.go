// Package db provides database connectivity for the job record store.
package db

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver identifies the relational engine backing the store. Callers select
// the engine through Options; everything above this package is agnostic to
// which engine is active.
type Driver string

// Supported store drivers
const (
	// DriverSQLite is the embedded single-file engine
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the client/server engine
	DriverPostgres Driver = "postgres"
)

// Database configuration constants
const (
	// DefaultHost is the default database host
	DefaultHost = "localhost"
	// DefaultPort is the default database port
	DefaultPort = 5432
	// DefaultUser is the default database user
	DefaultUser = "postgres"
	// DefaultPassword is the default database password
	DefaultPassword = "postgres"
	// DefaultDBName is the default database name
	DefaultDBName = "postgres"
)

// Options represents store connection configuration options
type Options struct {
	Driver Driver

	// Path is the database file path (sqlite only).
	Path string

	// Client/server connection parameters (postgres only).
	Host     string
	User     string
	Password string
	DBName   string
	Port     int
	SSLMode  string

	LogLevel logger.LogLevel
}

// New opens a store connection with the given options. The same *gorm.DB is
// returned for either engine.
func New(opts Options) (*gorm.DB, error) {
	opts = setDefaults(opts)

	// Configure custom logger to ignore record not found errors
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	config := &gorm.Config{
		Logger: newLogger,
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		dialector = sqlite.Open(opts.Path)
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			opts.Host, opts.User, opts.Password, opts.DBName, opts.Port, opts.SSLMode)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", opts.Driver, err)
	}
	return db, nil
}

func setDefaults(opts Options) Options {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.DBName == "" {
		opts.DBName = DefaultDBName
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.SSLMode == "" {
		opts.SSLMode = "disable"
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	return opts
}

// Info is the out-of-band store descriptor passed to runner subprocesses so
// they can locate the store without inline connection parameters.
type Info struct {
	Driver   Driver `json:"driver"`
	Path     string `json:"sqlite_db_file,omitempty"`
	Host     string `json:"host,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"dbname,omitempty"`
	Port     int    `json:"port,omitempty"`
	SSLMode  string `json:"sslmode,omitempty"`
}

// InfoFromOptions builds the descriptor for a set of connection options.
func InfoFromOptions(opts Options) Info {
	opts = setDefaults(opts)
	info := Info{Driver: opts.Driver}
	if opts.Driver == DriverSQLite {
		info.Path = opts.Path
		return info
	}
	info.Host = opts.Host
	info.User = opts.User
	info.Password = opts.Password
	info.DBName = opts.DBName
	info.Port = opts.Port
	info.SSLMode = opts.SSLMode
	return info
}

// Options converts the descriptor back into connection options.
func (i Info) Options() Options {
	return Options{
		Driver:   i.Driver,
		Path:     i.Path,
		Host:     i.Host,
		User:     i.User,
		Password: i.Password,
		DBName:   i.DBName,
		Port:     i.Port,
		SSLMode:  i.SSLMode,
	}
}

// WriteInfoFile writes the descriptor as JSON to path.
func WriteInfoFile(info Info, path string) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store info: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write store info file: %w", err)
	}
	return nil
}

// ReadInfoFile reads a JSON descriptor from path.
func ReadInfoFile(path string) (Info, error) {
	var info Info
	data, err := os.ReadFile(path)
	if err != nil {
		return info, fmt.Errorf("failed to read store info file: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("failed to parse store info file %s: %w", path, err)
	}
	if info.Driver == "" {
		// Older descriptor files only carried the sqlite path.
		if info.Path == "" {
			return info, fmt.Errorf("store info file %s does not identify a driver", path)
		}
		info.Driver = DriverSQLite
	}
	return info, nil
}

// NewFromInfoFile opens a store connection from a descriptor file.
func NewFromInfoFile(path string) (*gorm.DB, error) {
	info, err := ReadInfoFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return New(info.Options())
}
