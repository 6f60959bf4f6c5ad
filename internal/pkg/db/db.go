// Package db defines the persistence contract consumed by every higher
// level component of the control plane. Exactly one backend implementation
// is active per deployment; it is constructed by the process startup
// routine and registered here once before first use.
package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openstack/zun-sub002/internal/pkg/models"
)

// SortDir is the direction of a list sort.
type SortDir string

const (
	// SortAsc sorts ascending.
	SortAsc SortDir = "asc"

	// SortDesc sorts descending.
	SortDesc SortDir = "desc"
)

// NameScope controls where container names must be unique.
type NameScope string

const (
	// NameScopeNone disables name uniqueness.
	NameScopeNone NameScope = ""

	// NameScopeProject makes container names unique per project.
	NameScopeProject NameScope = "project"

	// NameScopeGlobal makes container names unique across all projects.
	NameScopeGlobal NameScope = "global"
)

// ParseNameScope validates a configured name scope value.
func ParseNameScope(value string) (NameScope, error) {
	switch scope := NameScope(value); scope {
	case NameScopeNone, NameScopeProject, NameScopeGlobal:
		return scope, nil
	default:
		return NameScopeNone, fmt.Errorf("unknown container name scope: %q", value)
	}
}

// ListOptions controls filtering, sorting and pagination of list calls.
// Filters are an exact-match conjunction over document field names; a
// slice-valued filter matches any of its members. Marker is the identity
// of the last item of the previous page and is excluded from the result.
// An empty SortKey sorts by the primary identity field.
type ListOptions struct {
	Filters map[string]interface{}
	Limit   int
	Marker  string
	SortKey string
	SortDir SortDir
}

// Capabilities describes guarantees of the active backend. AtomicUpdate is
// false for backends whose update is an unguarded read-modify-write, where
// a concurrent writer can be silently lost.
type Capabilities struct {
	AtomicUpdate bool
}

// Connection is the persistence abstraction. Implementations are safe for
// concurrent use; no caller may assume exclusive access to a record between
// two separate calls.
type Connection interface {
	Close() error
	Capabilities() Capabilities

	// Containers. Get, list, update and destroy honor the tenant scope
	// carried by ctx.
	CreateContainer(ctx context.Context, container *models.Container) (*models.Container, error)
	GetContainer(ctx context.Context, ident string) (*models.Container, error)
	GetContainerByName(ctx context.Context, name string) (*models.Container, error)
	ListContainers(ctx context.Context, opts ListOptions) ([]*models.Container, error)
	UpdateContainer(ctx context.Context, ident string, values map[string]interface{}) (*models.Container, error)
	DestroyContainer(ctx context.Context, ident string) error

	// Compute nodes.
	CreateComputeNode(ctx context.Context, node *models.ComputeNode) (*models.ComputeNode, error)
	GetComputeNode(ctx context.Context, nodeUUID string) (*models.ComputeNode, error)
	GetComputeNodeByHostname(ctx context.Context, hostname string) (*models.ComputeNode, error)
	ListComputeNodes(ctx context.Context, opts ListOptions) ([]*models.ComputeNode, error)
	UpdateComputeNode(ctx context.Context, nodeUUID string, values map[string]interface{}) (*models.ComputeNode, error)
	DestroyComputeNode(ctx context.Context, nodeUUID string) error

	// Resource providers.
	CreateResourceProvider(ctx context.Context, provider *models.ResourceProvider) (*models.ResourceProvider, error)
	GetResourceProvider(ctx context.Context, ident string) (*models.ResourceProvider, error)
	GetResourceProviderByName(ctx context.Context, name string) (*models.ResourceProvider, error)
	ListResourceProviders(ctx context.Context, opts ListOptions) ([]*models.ResourceProvider, error)
	UpdateResourceProvider(ctx context.Context, ident string, values map[string]interface{}) (*models.ResourceProvider, error)
	DestroyResourceProvider(ctx context.Context, ident string) error

	// Resource classes.
	CreateResourceClass(ctx context.Context, class *models.ResourceClass) (*models.ResourceClass, error)
	GetResourceClass(ctx context.Context, ident string) (*models.ResourceClass, error)
	GetResourceClassByName(ctx context.Context, name string) (*models.ResourceClass, error)
	ListResourceClasses(ctx context.Context, opts ListOptions) ([]*models.ResourceClass, error)
	UpdateResourceClass(ctx context.Context, ident string, values map[string]interface{}) (*models.ResourceClass, error)
	DestroyResourceClass(ctx context.Context, ident string) error

	// Inventories. At most one record exists per (provider, class) pair.
	CreateInventory(ctx context.Context, inventory *models.Inventory) (*models.Inventory, error)
	GetInventory(ctx context.Context, id int64) (*models.Inventory, error)
	ListInventories(ctx context.Context, opts ListOptions) ([]*models.Inventory, error)
	UpdateInventory(ctx context.Context, id int64, values map[string]interface{}) (*models.Inventory, error)
	DestroyInventory(ctx context.Context, id int64) error

	// Allocations.
	CreateAllocation(ctx context.Context, allocation *models.Allocation) (*models.Allocation, error)
	GetAllocation(ctx context.Context, id int64) (*models.Allocation, error)
	ListAllocations(ctx context.Context, opts ListOptions) ([]*models.Allocation, error)
	UpdateAllocation(ctx context.Context, id int64, values map[string]interface{}) (*models.Allocation, error)
	DestroyAllocation(ctx context.Context, id int64) error

	// Quotas and quota classes.
	CreateQuota(ctx context.Context, quota *models.Quota) (*models.Quota, error)
	GetQuota(ctx context.Context, projectID string, resource string) (*models.Quota, error)
	ListQuotas(ctx context.Context, opts ListOptions) ([]*models.Quota, error)
	UpdateQuota(ctx context.Context, projectID string, resource string, values map[string]interface{}) (*models.Quota, error)
	DestroyQuota(ctx context.Context, projectID string, resource string) error
	CreateQuotaClass(ctx context.Context, class *models.QuotaClass) (*models.QuotaClass, error)
	GetQuotaClass(ctx context.Context, className string, resource string) (*models.QuotaClass, error)
	ListQuotaClasses(ctx context.Context, opts ListOptions) ([]*models.QuotaClass, error)
	UpdateQuotaClass(ctx context.Context, className string, resource string, values map[string]interface{}) (*models.QuotaClass, error)

	// Container action audit log.
	CreateContainerAction(ctx context.Context, action *models.ContainerAction) (*models.ContainerAction, error)
	GetContainerActionByRequestID(ctx context.Context, containerUUID string, requestID string) (*models.ContainerAction, error)
	ListContainerActions(ctx context.Context, containerUUID string) ([]*models.ContainerAction, error)
	UpdateContainerAction(ctx context.Context, containerUUID string, requestID string, values map[string]interface{}) (*models.ContainerAction, error)
	CreateContainerActionEvent(ctx context.Context, actionID int64, event *models.ContainerActionEvent) (*models.ContainerActionEvent, error)
	ListContainerActionEvents(ctx context.Context, actionID int64) ([]*models.ContainerActionEvent, error)
	UpdateContainerActionEvent(ctx context.Context, actionID int64, event string, values map[string]interface{}) (*models.ContainerActionEvent, error)

	// Service liveness records.
	CreateZunService(ctx context.Context, service *models.ZunService) (*models.ZunService, error)
	GetZunService(ctx context.Context, host string, binary string) (*models.ZunService, error)
	ListZunServices(ctx context.Context, opts ListOptions) ([]*models.ZunService, error)
	UpdateZunService(ctx context.Context, host string, binary string, values map[string]interface{}) (*models.ZunService, error)
	DestroyZunService(ctx context.Context, host string, binary string) error
}

var (
	// ErrAlreadyInitialized is returned when Init is called twice.
	ErrAlreadyInitialized = errors.New("db: connection already initialized")

	// ErrNotInitialized is returned when Instance is called before Init.
	ErrNotInitialized = errors.New("db: connection not initialized")

	instanceLock sync.RWMutex
	instance     Connection
)

// Init registers the process-wide connection. It must be called exactly
// once by the startup routine before any component uses Instance.
func Init(conn Connection) error {
	instanceLock.Lock()
	defer instanceLock.Unlock()

	if instance != nil {
		return ErrAlreadyInitialized
	}
	instance = conn
	return nil
}

// Instance returns the process-wide connection registered by Init.
func Instance() (Connection, error) {
	instanceLock.RLock()
	defer instanceLock.RUnlock()

	if instance == nil {
		return nil, ErrNotInitialized
	}
	return instance, nil
}
