// Package placement is the resource accounting engine: it manages the
// resource provider tree, the capacity envelope per (provider, class) pair
// and the allocations consumers hold against those envelopes.
package placement

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/pkg/logger"
)

var log = logger.NewLogger("zun.placement")

// maxTreeDepth bounds the ancestry walk during provider validation so a
// corrupted parent chain cannot loop forever.
const maxTreeDepth = 64

type Engine interface {
	CreateProvider(ctx context.Context, provider *models.ResourceProvider) (*models.ResourceProvider, error)
	GetProvider(ctx context.Context, ident string) (*models.ResourceProvider, error)
	ListProviders(ctx context.Context, opts db.ListOptions) ([]*models.ResourceProvider, error)
	DestroyProvider(ctx context.Context, ident string) error
	CreateClass(ctx context.Context, class *models.ResourceClass) (*models.ResourceClass, error)
	SetInventory(ctx context.Context, inventory *models.Inventory) (*models.Inventory, error)
	ProviderInventories(ctx context.Context, providerID int64) ([]*models.Inventory, error)
	Allocate(ctx context.Context, allocation *models.Allocation) (*models.Allocation, error)
	AllocationsByConsumer(ctx context.Context, consumerID string) ([]*models.Allocation, error)
	AllocationsByProvider(ctx context.Context, providerID int64) ([]*models.Allocation, error)
	RemoveAllocation(ctx context.Context, id int64) error
	Usage(ctx context.Context, providerID int64, classID int64) (int64, error)
}

type engine struct {
	conn     db.Connection
	validate *validator.Validate
}

// NewEngine creates a new resource accounting engine on the given
// connection.
func NewEngine(conn db.Connection) Engine {
	return &engine{
		conn:     conn,
		validate: validator.New(),
	}
}

// CreateProvider creates a resource provider after validating its position
// in the provider tree. A provider without a root becomes its own root; a
// parent may be absent only for a root.
func (e *engine) CreateProvider(ctx context.Context, provider *models.ResourceProvider) (*models.ResourceProvider, error) {
	if provider.UUID == "" {
		provider.UUID = identity.New()
	}
	if provider.RootProvider == "" && provider.ParentProvider == "" {
		provider.RootProvider = provider.UUID
	}
	if provider.ParentProvider != "" {
		parent, err := e.conn.GetResourceProvider(ctx, provider.ParentProvider)
		if err != nil {
			return nil, err
		}
		if provider.RootProvider == "" {
			provider.RootProvider = parent.RootProvider
		}
	}
	if err := e.checkAncestry(ctx, provider); err != nil {
		return nil, err
	}
	created, err := e.conn.CreateResourceProvider(ctx, provider)
	if err != nil {
		return nil, err
	}
	log.Debugf("created resource provider %s under root %s", created.UUID, created.RootProvider)
	return created, nil
}

// checkAncestry verifies that following the parent chain from the provider
// reaches its declared root.
func (e *engine) checkAncestry(ctx context.Context, provider *models.ResourceProvider) error {
	if provider.RootProvider == provider.UUID {
		if provider.ParentProvider != "" && provider.ParentProvider == provider.UUID {
			return errdefs.NewInvalidParameter("parent_provider", "provider cannot be its own parent")
		}
		return nil
	}
	if provider.ParentProvider == "" {
		return errdefs.NewInvalidParameter("parent_provider", "only a root provider may lack a parent")
	}

	current := provider.ParentProvider
	for depth := 0; depth < maxTreeDepth; depth++ {
		ancestor, err := e.conn.GetResourceProvider(ctx, current)
		if err != nil {
			return err
		}
		if ancestor.UUID == provider.RootProvider {
			return nil
		}
		if ancestor.ParentProvider == "" {
			return errdefs.NewInvalidParameter("root_provider", "root is not reachable from the parent chain")
		}
		current = ancestor.ParentProvider
	}
	return errdefs.NewInvalidParameter("parent_provider", "provider ancestry exceeds the supported depth")
}

// GetProvider retrieves a resource provider by its id or uuid.
func (e *engine) GetProvider(ctx context.Context, ident string) (*models.ResourceProvider, error) {
	return e.conn.GetResourceProvider(ctx, ident)
}

// ListProviders retrieves resource providers matching the options.
func (e *engine) ListProviders(ctx context.Context, opts db.ListOptions) ([]*models.ResourceProvider, error) {
	return e.conn.ListResourceProviders(ctx, opts)
}

// DestroyProvider deletes a resource provider. Inventories and allocations
// referencing the provider are not cascaded; cleaning them up is the
// caller's responsibility.
func (e *engine) DestroyProvider(ctx context.Context, ident string) error {
	return e.conn.DestroyResourceProvider(ctx, ident)
}

// CreateClass creates a named capacity dimension.
func (e *engine) CreateClass(ctx context.Context, class *models.ResourceClass) (*models.ResourceClass, error) {
	return e.conn.CreateResourceClass(ctx, class)
}

// SetInventory creates the capacity envelope for one (provider, class)
// pair after validating it.
func (e *engine) SetInventory(ctx context.Context, inventory *models.Inventory) (*models.Inventory, error) {
	if inventory.AllocationRatio == 0 {
		inventory.AllocationRatio = 1.0
	}
	if inventory.MinUnit == 0 {
		inventory.MinUnit = 1
	}
	if inventory.MaxUnit == 0 {
		inventory.MaxUnit = inventory.Total
	}
	if inventory.StepSize == 0 {
		inventory.StepSize = 1
	}
	if err := e.validate.Struct(inventory); err != nil {
		return nil, errdefs.NewInvalidParameter("inventory", err.Error())
	}
	if inventory.Reserved > inventory.Total {
		return nil, errdefs.NewInvalidParameter("reserved", "reserved exceeds total")
	}
	if inventory.MinUnit > inventory.MaxUnit {
		return nil, errdefs.NewInvalidParameter("min_unit", "min_unit exceeds max_unit")
	}
	if inventory.MaxUnit > inventory.Total {
		return nil, errdefs.NewInvalidParameter("max_unit", "max_unit exceeds total")
	}
	return e.conn.CreateInventory(ctx, inventory)
}

// ProviderInventories retrieves the capacity envelopes of one provider.
func (e *engine) ProviderInventories(ctx context.Context, providerID int64) ([]*models.Inventory, error) {
	return e.conn.ListInventories(ctx, db.ListOptions{
		Filters: map[string]interface{}{"resource_provider_id": providerID},
	})
}

// Allocate records one consumer's claim against a provider/class pair.
// Keeping the sum of claims within the envelope is a caller convention,
// not enforced here.
func (e *engine) Allocate(ctx context.Context, allocation *models.Allocation) (*models.Allocation, error) {
	if err := e.validate.Struct(allocation); err != nil {
		return nil, errdefs.NewInvalidParameter("allocation", err.Error())
	}
	return e.conn.CreateAllocation(ctx, allocation)
}

// AllocationsByConsumer retrieves all claims held by one consumer.
func (e *engine) AllocationsByConsumer(ctx context.Context, consumerID string) ([]*models.Allocation, error) {
	return e.conn.ListAllocations(ctx, db.ListOptions{
		Filters: map[string]interface{}{"consumer_id": consumerID},
	})
}

// AllocationsByProvider retrieves all claims held against one provider.
func (e *engine) AllocationsByProvider(ctx context.Context, providerID int64) ([]*models.Allocation, error) {
	return e.conn.ListAllocations(ctx, db.ListOptions{
		Filters: map[string]interface{}{"resource_provider_id": providerID},
	})
}

// RemoveAllocation releases one claim.
func (e *engine) RemoveAllocation(ctx context.Context, id int64) error {
	return e.conn.DestroyAllocation(ctx, id)
}

// Usage sums the claimed quantity against one (provider, class) pair.
func (e *engine) Usage(ctx context.Context, providerID int64, classID int64) (int64, error) {
	allocations, err := e.conn.ListAllocations(ctx, db.ListOptions{
		Filters: map[string]interface{}{
			"resource_provider_id": providerID,
			"resource_class_id":    classID,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compute usage: %w", err)
	}
	var used int64
	for _, allocation := range allocations {
		used += allocation.Used
	}
	return used, nil
}
