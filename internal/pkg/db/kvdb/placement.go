package kvdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

var (
	resourceProviderListSpec = newListSpec("resource provider", models.ResourceProvider{}, "uuid")
	resourceClassListSpec    = newListSpec("resource class", models.ResourceClass{}, "uuid")
	inventoryListSpec        = newListSpec("inventory", models.Inventory{}, "id")
	allocationListSpec       = newListSpec("allocation", models.Allocation{}, "id")
)

// CreateResourceProvider creates a new resource provider.
func (c *client) CreateResourceProvider(ctx context.Context, provider *models.ResourceProvider) (*models.ResourceProvider, error) {
	if provider.UUID == "" {
		provider.UUID = identity.New()
	}
	matched, err := runList[models.ResourceProvider](ctx, c, resourceProvidersNS, resourceProviderListSpec,
		db.ListOptions{Filters: map[string]interface{}{"name": provider.Name}}, nil)
	if err != nil {
		return nil, err
	}
	if len(matched) > 0 {
		return nil, errdefs.NewAlreadyExists("resource provider", "name", provider.Name)
	}
	found, err := c.exists(ctx, resourceProvidersNS, provider.UUID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("resource provider", "uuid", provider.UUID)
	}
	id, err := c.nextID(ctx, resourceProvidersNS)
	if err != nil {
		return nil, err
	}
	provider.ID = id
	provider.CreatedAt = now()
	provider.UpdatedAt = provider.CreatedAt
	if err := c.put(ctx, resourceProvidersNS, provider.UUID, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetResourceProvider retrieves a resource provider by its id or uuid.
func (c *client) GetResourceProvider(ctx context.Context, ident string) (*models.ResourceProvider, error) {
	resolved, err := identity.Parse(ident)
	if err != nil {
		return nil, err
	}
	if resolved.Kind == identity.KindID {
		return findOne[models.ResourceProvider](ctx, c, resourceProvidersNS, resourceProviderListSpec, "id", resolved.ID, nil)
	}
	raw, found, err := c.getRaw(ctx, resourceProvidersNS, resolved.UUID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("resource provider", ident)
	}
	var provider models.ResourceProvider
	if err := json.Unmarshal(raw, &provider); err != nil {
		return nil, fmt.Errorf("failed to deserialize resource provider: %w", err)
	}
	return &provider, nil
}

// GetResourceProviderByName retrieves a resource provider by its name.
func (c *client) GetResourceProviderByName(ctx context.Context, name string) (*models.ResourceProvider, error) {
	return findOne[models.ResourceProvider](ctx, c, resourceProvidersNS, resourceProviderListSpec, "name", name, nil)
}

// ListResourceProviders retrieves resource providers matching the options.
func (c *client) ListResourceProviders(ctx context.Context, opts db.ListOptions) ([]*models.ResourceProvider, error) {
	return runList[models.ResourceProvider](ctx, c, resourceProvidersNS, resourceProviderListSpec, opts, nil)
}

// UpdateResourceProvider applies the given field values to a provider.
func (c *client) UpdateResourceProvider(ctx context.Context, ident string, values map[string]interface{}) (*models.ResourceProvider, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	provider, err := c.GetResourceProvider(ctx, ident)
	if err != nil {
		return nil, err
	}
	if name, ok := values["name"].(string); ok && name != provider.Name {
		matched, err := runList[models.ResourceProvider](ctx, c, resourceProvidersNS, resourceProviderListSpec,
			db.ListOptions{Filters: map[string]interface{}{"name": name}}, nil)
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			return nil, errdefs.NewAlreadyExists("resource provider", "name", name)
		}
	}
	if err := models.Apply(provider, values); err != nil {
		return nil, err
	}
	provider.UpdatedAt = now()
	if err := c.put(ctx, resourceProvidersNS, provider.UUID, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// DestroyResourceProvider deletes a resource provider. Inventory and
// allocation records referencing it are intentionally left in place; any
// cascade or guard is the caller's responsibility.
func (c *client) DestroyResourceProvider(ctx context.Context, ident string) error {
	provider, err := c.GetResourceProvider(ctx, ident)
	if err != nil {
		return err
	}
	found, err := c.del(ctx, resourceProvidersNS, provider.UUID)
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("resource provider", ident)
	}
	return nil
}

// CreateResourceClass creates a new resource class.
func (c *client) CreateResourceClass(ctx context.Context, class *models.ResourceClass) (*models.ResourceClass, error) {
	if class.UUID == "" {
		class.UUID = identity.New()
	}
	matched, err := runList[models.ResourceClass](ctx, c, resourceClassesNS, resourceClassListSpec,
		db.ListOptions{Filters: map[string]interface{}{"name": class.Name}}, nil)
	if err != nil {
		return nil, err
	}
	if len(matched) > 0 {
		return nil, errdefs.NewAlreadyExists("resource class", "name", class.Name)
	}
	found, err := c.exists(ctx, resourceClassesNS, class.UUID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("resource class", "uuid", class.UUID)
	}
	id, err := c.nextID(ctx, resourceClassesNS)
	if err != nil {
		return nil, err
	}
	class.ID = id
	class.CreatedAt = now()
	class.UpdatedAt = class.CreatedAt
	if err := c.put(ctx, resourceClassesNS, class.UUID, class); err != nil {
		return nil, err
	}
	return class, nil
}

// GetResourceClass retrieves a resource class by its id or uuid.
func (c *client) GetResourceClass(ctx context.Context, ident string) (*models.ResourceClass, error) {
	resolved, err := identity.Parse(ident)
	if err != nil {
		return nil, err
	}
	if resolved.Kind == identity.KindID {
		return findOne[models.ResourceClass](ctx, c, resourceClassesNS, resourceClassListSpec, "id", resolved.ID, nil)
	}
	raw, found, err := c.getRaw(ctx, resourceClassesNS, resolved.UUID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("resource class", ident)
	}
	var class models.ResourceClass
	if err := json.Unmarshal(raw, &class); err != nil {
		return nil, fmt.Errorf("failed to deserialize resource class: %w", err)
	}
	return &class, nil
}

// GetResourceClassByName retrieves a resource class by its name.
func (c *client) GetResourceClassByName(ctx context.Context, name string) (*models.ResourceClass, error) {
	return findOne[models.ResourceClass](ctx, c, resourceClassesNS, resourceClassListSpec, "name", name, nil)
}

// ListResourceClasses retrieves resource classes matching the options.
func (c *client) ListResourceClasses(ctx context.Context, opts db.ListOptions) ([]*models.ResourceClass, error) {
	return runList[models.ResourceClass](ctx, c, resourceClassesNS, resourceClassListSpec, opts, nil)
}

// UpdateResourceClass applies the given field values to a resource class.
func (c *client) UpdateResourceClass(ctx context.Context, ident string, values map[string]interface{}) (*models.ResourceClass, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	class, err := c.GetResourceClass(ctx, ident)
	if err != nil {
		return nil, err
	}
	if name, ok := values["name"].(string); ok && name != class.Name {
		matched, err := runList[models.ResourceClass](ctx, c, resourceClassesNS, resourceClassListSpec,
			db.ListOptions{Filters: map[string]interface{}{"name": name}}, nil)
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			return nil, errdefs.NewAlreadyExists("resource class", "name", name)
		}
	}
	if err := models.Apply(class, values); err != nil {
		return nil, err
	}
	class.UpdatedAt = now()
	if err := c.put(ctx, resourceClassesNS, class.UUID, class); err != nil {
		return nil, err
	}
	return class, nil
}

// DestroyResourceClass deletes a resource class.
func (c *client) DestroyResourceClass(ctx context.Context, ident string) error {
	class, err := c.GetResourceClass(ctx, ident)
	if err != nil {
		return err
	}
	found, err := c.del(ctx, resourceClassesNS, class.UUID)
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("resource class", ident)
	}
	return nil
}

// inventoryPairKey is the natural key guarding the one-envelope-per-pair
// invariant in this backend.
func inventoryPairKey(providerID int64, classID int64) string {
	return strconv.FormatInt(providerID, 10) + "_" + strconv.FormatInt(classID, 10)
}

// CreateInventory creates the capacity envelope for one (provider, class)
// pair. A second envelope for the same pair is a uniqueness violation.
func (c *client) CreateInventory(ctx context.Context, inventory *models.Inventory) (*models.Inventory, error) {
	pair := inventoryPairKey(inventory.ResourceProviderID, inventory.ResourceClassID)
	found, err := c.exists(ctx, inventoriesNS, pair)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("inventory",
			"resource_provider_id", strconv.FormatInt(inventory.ResourceProviderID, 10),
			"resource_class_id", strconv.FormatInt(inventory.ResourceClassID, 10),
		)
	}
	id, err := c.nextID(ctx, inventoriesNS)
	if err != nil {
		return nil, err
	}
	inventory.ID = id
	inventory.CreatedAt = now()
	inventory.UpdatedAt = inventory.CreatedAt
	if err := c.put(ctx, inventoriesNS, pair, inventory); err != nil {
		return nil, err
	}
	return inventory, nil
}

// GetInventory retrieves an inventory record by its id.
func (c *client) GetInventory(ctx context.Context, id int64) (*models.Inventory, error) {
	return findOne[models.Inventory](ctx, c, inventoriesNS, inventoryListSpec, "id", id, nil)
}

// ListInventories retrieves inventory records matching the options.
func (c *client) ListInventories(ctx context.Context, opts db.ListOptions) ([]*models.Inventory, error) {
	return runList[models.Inventory](ctx, c, inventoriesNS, inventoryListSpec, opts, nil)
}

// UpdateInventory applies the given field values to an inventory record.
func (c *client) UpdateInventory(ctx context.Context, id int64, values map[string]interface{}) (*models.Inventory, error) {
	if err := models.CheckImmutable(values, "id", "resource_provider_id", "resource_class_id", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	inventory, err := c.GetInventory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.Apply(inventory, values); err != nil {
		return nil, err
	}
	inventory.UpdatedAt = now()
	pair := inventoryPairKey(inventory.ResourceProviderID, inventory.ResourceClassID)
	if err := c.put(ctx, inventoriesNS, pair, inventory); err != nil {
		return nil, err
	}
	return inventory, nil
}

// DestroyInventory deletes an inventory record.
func (c *client) DestroyInventory(ctx context.Context, id int64) error {
	inventory, err := c.GetInventory(ctx, id)
	if err != nil {
		return err
	}
	pair := inventoryPairKey(inventory.ResourceProviderID, inventory.ResourceClassID)
	found, err := c.del(ctx, inventoriesNS, pair)
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("inventory", strconv.FormatInt(id, 10))
	}
	return nil
}

// CreateAllocation records one consumer's claim against a provider/class
// pair. Multiple claims may coexist for the same pair.
func (c *client) CreateAllocation(ctx context.Context, allocation *models.Allocation) (*models.Allocation, error) {
	id, err := c.nextID(ctx, allocationsNS)
	if err != nil {
		return nil, err
	}
	allocation.ID = id
	allocation.CreatedAt = now()
	allocation.UpdatedAt = allocation.CreatedAt
	if err := c.put(ctx, allocationsNS, strconv.FormatInt(id, 10), allocation); err != nil {
		return nil, err
	}
	return allocation, nil
}

// GetAllocation retrieves an allocation by its id.
func (c *client) GetAllocation(ctx context.Context, id int64) (*models.Allocation, error) {
	raw, found, err := c.getRaw(ctx, allocationsNS, strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("allocation", strconv.FormatInt(id, 10))
	}
	var allocation models.Allocation
	if err := json.Unmarshal(raw, &allocation); err != nil {
		return nil, fmt.Errorf("failed to deserialize allocation: %w", err)
	}
	return &allocation, nil
}

// ListAllocations retrieves allocations matching the options.
func (c *client) ListAllocations(ctx context.Context, opts db.ListOptions) ([]*models.Allocation, error) {
	return runList[models.Allocation](ctx, c, allocationsNS, allocationListSpec, opts, nil)
}

// UpdateAllocation applies the given field values to an allocation.
func (c *client) UpdateAllocation(ctx context.Context, id int64, values map[string]interface{}) (*models.Allocation, error) {
	if err := models.CheckImmutable(values, "id", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	allocation, err := c.GetAllocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.Apply(allocation, values); err != nil {
		return nil, err
	}
	allocation.UpdatedAt = now()
	if err := c.put(ctx, allocationsNS, strconv.FormatInt(id, 10), allocation); err != nil {
		return nil, err
	}
	return allocation, nil
}

// DestroyAllocation deletes an allocation.
func (c *client) DestroyAllocation(ctx context.Context, id int64) error {
	found, err := c.del(ctx, allocationsNS, strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("allocation", strconv.FormatInt(id, 10))
	}
	return nil
}
