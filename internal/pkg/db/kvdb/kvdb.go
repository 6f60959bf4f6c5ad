// Package kvdb implements the persistence contract on a flat-namespace
// key-value store. Every entity type lives under one key prefix and every
// record is stored as a self-describing JSON document.
//
// The store offers no secondary indexes and no multi-key transactions, so
// filtering, sorting and uniqueness are implemented client-side. Updates
// are an unguarded read-modify-write: when two writers race on the same
// record, the last write wins and the earlier one is silently lost. That
// is an accepted property of this backend, reported through
// Capabilities().AtomicUpdate, not an error surfaced per call.
package kvdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var log = logger.NewLogger("zun.db.kv")

const keyPrefix = "zun"

const (
	containersNS            = "containers"
	computeNodesNS          = "compute_nodes"
	resourceProvidersNS     = "resource_providers"
	resourceClassesNS       = "resource_classes"
	inventoriesNS           = "inventories"
	allocationsNS           = "allocations"
	quotasNS                = "quotas"
	quotaClassesNS          = "quota_classes"
	containerActionsNS      = "container_actions"
	containerActionEventsNS = "container_action_events"
	zunServicesNS           = "zun_services"
)

type Options struct {
	Address  string
	Username string
	Password string
	Database int

	// NameScope controls where container names must be unique.
	NameScope db.NameScope
}

type client struct {
	rdb       *redis.Client
	nameScope db.NameScope
}

// New connects to the key-value store.
func New(opts Options) (db.Connection, error) {
	log.Infof("connecting to key-value store: %s", opts.Address)

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.Database,
	})
	return NewWithClient(rdb, opts.NameScope), nil
}

// NewWithClient wraps an existing store client. Tests use this with an
// embedded store.
func NewWithClient(rdb *redis.Client, nameScope db.NameScope) db.Connection {
	return &client{
		rdb:       rdb,
		nameScope: nameScope,
	}
}

// Close closes the store client.
func (c *client) Close() error {
	log.Info("closing key-value store client")
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("failed to close key-value store client: %w", err)
	}
	return nil
}

// Capabilities reports the guarantees of this backend. Updates are not
// atomic here.
func (c *client) Capabilities() db.Capabilities {
	return db.Capabilities{AtomicUpdate: false}
}

func key(namespace string, id string) string {
	return keyPrefix + "/" + namespace + "/" + id
}

// nextID hands out integer surrogate keys per entity namespace. The counter
// increment is the one atomic primitive this backend relies on.
func (c *client) nextID(ctx context.Context, namespace string) (int64, error) {
	id, err := c.rdb.Incr(ctx, keyPrefix+"/ids/"+namespace).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

// put serializes a record and writes it under its key.
func (c *client) put(ctx context.Context, namespace string, id string, rec interface{}) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}
	if err := c.rdb.Set(ctx, key(namespace, id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// getRaw reads the raw document under a key. found is false when the key
// does not exist.
func (c *client) getRaw(ctx context.Context, namespace string, id string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key(namespace, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read record: %w", err)
	}
	return data, true, nil
}

// exists reports whether a key is present. Create uses this as its
// uniqueness check; a concurrent create between the check and the write
// can race, for the same reason updates can.
func (c *client) exists(ctx context.Context, namespace string, id string) (bool, error) {
	count, err := c.rdb.Exists(ctx, key(namespace, id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check record existence: %w", err)
	}
	return count > 0, nil
}

// scanAll reads every document under an entity namespace. There is no
// server-side query capability, so every list and secondary lookup starts
// here.
func (c *client) scanAll(ctx context.Context, namespace string) ([][]byte, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, key(namespace, "*"), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan namespace %s: %w", namespace, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace %s: %w", namespace, err)
	}
	raws := make([][]byte, 0, len(values))
	for _, value := range values {
		// Keys deleted between scan and read are skipped.
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			raws = append(raws, []byte(s))
		}
	}
	return raws, nil
}

// del removes a key. found is false when the key did not exist.
func (c *client) del(ctx context.Context, namespace string, id string) (bool, error) {
	count, err := c.rdb.Del(ctx, key(namespace, id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return count > 0, nil
}

// now returns the timestamp this backend stamps on writes.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
