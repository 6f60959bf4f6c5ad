// Package sqldb implements the persistence contract on a transactional SQL
// engine. Updates run inside a transaction that locks the target row, so
// concurrent read-modify-write sequences cannot lose writes. Uniqueness is
// enforced by schema constraints and translated into the domain taxonomy.
package sqldb

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var log = logger.NewLogger("zun.db.sql")

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	SslMode  bool

	// NameScope controls where container names must be unique.
	NameScope db.NameScope
}

type client struct {
	db        *gorm.DB
	nameScope db.NameScope
}

// New connects to the database server and migrates the schema.
func New(opts Options) (db.Connection, error) {
	log.Infof("connecting to database server: %s:%d", opts.Host, opts.Port)

	sslMode := "disable"
	if opts.SslMode {
		sslMode = "enable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host, opts.Port, opts.Username, opts.Password, opts.Database, sslMode,
	)
	return NewWithDialector(postgres.New(postgres.Config{DSN: dsn}), opts.NameScope)
}

// NewWithDialector opens the backend on an explicit gorm dialector. Tests
// use this with an embedded engine.
func NewWithDialector(dialector gorm.Dialector, nameScope db.NameScope) (db.Connection, error) {
	gormDb, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c := &client{
		db:        gormDb,
		nameScope: nameScope,
	}
	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close closes the database connection.
func (c *client) Close() error {
	log.Info("closing database connection")
	sqlDb, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	if err := sqlDb.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// Capabilities reports the guarantees of this backend.
func (c *client) Capabilities() db.Capabilities {
	return db.Capabilities{AtomicUpdate: true}
}

// migrate migrates the database schema.
func (c *client) migrate() error {
	log.Info("migrating database schema")
	if err := c.db.AutoMigrate(
		&models.Container{},
		&models.ComputeNode{},
		&models.ResourceProvider{},
		&models.ResourceClass{},
		&models.Inventory{},
		&models.Allocation{},
		&models.Quota{},
		&models.QuotaClass{},
		&models.ContainerAction{},
		&models.ContainerActionEvent{},
		&models.ZunService{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// forUpdate adds a row write lock on engines that support one. The embedded
// engine used in tests serializes writers on its own.
func (c *client) forUpdate(tx *gorm.DB) *gorm.DB {
	if c.db.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// querySpec describes the queryable surface of one entity table.
type querySpec struct {
	fields   map[string]struct{}
	idColumn string
}

func newQuerySpec(prototype interface{}, idColumn string) querySpec {
	return querySpec{
		fields:   models.FieldNames(prototype),
		idColumn: idColumn,
	}
}

// buildList translates ListOptions into a query: exact-match filters,
// validated sort key with the identity column as tie break, and marker
// pagination exclusive of the marker record.
func (c *client) buildList(tx *gorm.DB, spec querySpec, opts db.ListOptions, marker interface{}) (*gorm.DB, error) {
	for field, value := range opts.Filters {
		if _, ok := spec.fields[field]; !ok {
			return nil, errdefs.NewInvalidParameter("filters", fmt.Sprintf("unknown field %s", field))
		}
		if reflect.ValueOf(value).Kind() == reflect.Slice {
			tx = tx.Where(fmt.Sprintf("%s IN ?", field), value)
		} else {
			tx = tx.Where(fmt.Sprintf("%s = ?", field), value)
		}
	}

	sortKey := opts.SortKey
	if sortKey == "" {
		sortKey = spec.idColumn
	}
	if _, ok := spec.fields[sortKey]; !ok {
		return nil, errdefs.NewInvalidParameter("sort_key", fmt.Sprintf("unknown field %s", sortKey))
	}
	dir := opts.SortDir
	switch dir {
	case "":
		dir = db.SortAsc
	case db.SortAsc, db.SortDesc:
	default:
		return nil, errdefs.NewInvalidParameter("sort_dir", fmt.Sprintf("must be %q or %q", db.SortAsc, db.SortDesc))
	}

	order := fmt.Sprintf("%s %s", sortKey, dir)
	if sortKey != spec.idColumn {
		order = fmt.Sprintf("%s, %s %s", order, spec.idColumn, dir)
	}
	tx = tx.Order(order)

	if marker != nil {
		cmp := ">"
		if dir == db.SortDesc {
			cmp = "<"
		}
		markerID := models.FieldValue(marker, spec.idColumn)
		if sortKey == spec.idColumn {
			tx = tx.Where(fmt.Sprintf("%s %s ?", spec.idColumn, cmp), markerID)
		} else {
			sortVal := models.FieldValue(marker, sortKey)
			tx = tx.Where(
				fmt.Sprintf("%s %s ? OR (%s = ? AND %s %s ?)", sortKey, cmp, sortKey, spec.idColumn, cmp),
				sortVal, sortVal, markerID,
			)
		}
	}

	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}
	return tx, nil
}

// duplicated reports whether the engine rejected a write because of a
// unique constraint.
func duplicated(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Not every dialector translates constraint errors.
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "SQLSTATE 23505")
}
