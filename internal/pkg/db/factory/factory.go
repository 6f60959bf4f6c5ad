// Package factory constructs the configured persistence backend. Exactly
// one backend is active per deployment; switching backends at runtime is
// not supported and data is not migrated between them.
package factory

import (
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/db/kvdb"
	"github.com/openstack/zun-sub002/internal/pkg/db/sqldb"
)

const (
	// BackendSQL selects the relational backend.
	BackendSQL = "sql"

	// BackendKV selects the key-value backend.
	BackendKV = "kv"
)

type Options struct {
	Backend string
	SQL     sqldb.Options
	KV      kvdb.Options
}

// New constructs the backend selected by the options.
func New(opts Options) (db.Connection, error) {
	switch opts.Backend {
	case BackendSQL:
		return sqldb.New(opts.SQL)
	case BackendKV:
		return kvdb.New(opts.KV)
	default:
		return nil, fmt.Errorf("unknown database backend: %q", opts.Backend)
	}
}
