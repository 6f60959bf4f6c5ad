package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"gorm.io/gorm"
)

var (
	resourceProviderSpec = newQuerySpec(models.ResourceProvider{}, "id")
	resourceClassSpec    = newQuerySpec(models.ResourceClass{}, "id")
	inventorySpec        = newQuerySpec(models.Inventory{}, "id")
	allocationSpec       = newQuerySpec(models.Allocation{}, "id")
)

// CreateResourceProvider creates a new resource provider.
func (c *client) CreateResourceProvider(ctx context.Context, provider *models.ResourceProvider) (*models.ResourceProvider, error) {
	if provider.UUID == "" {
		provider.UUID = identity.New()
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ResourceProvider{}).Where("name = ?", provider.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check provider name: %w", err)
		}
		if count > 0 {
			return errdefs.NewAlreadyExists("resource provider", "name", provider.Name)
		}
		if err := tx.Create(provider).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("resource provider", "uuid", provider.UUID)
			}
			return fmt.Errorf("failed to create resource provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (c *client) getResourceProvider(tx *gorm.DB, ident string) (*models.ResourceProvider, error) {
	resolved, err := identity.Parse(ident)
	if err != nil {
		return nil, err
	}
	if resolved.Kind == identity.KindID {
		tx = tx.Where("id = ?", resolved.ID)
	} else {
		tx = tx.Where("uuid = ?", resolved.UUID)
	}
	var provider models.ResourceProvider
	if err := tx.First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("resource provider", ident)
		}
		return nil, fmt.Errorf("failed to get resource provider: %w", err)
	}
	return &provider, nil
}

// GetResourceProvider retrieves a resource provider by its id or uuid.
func (c *client) GetResourceProvider(ctx context.Context, ident string) (*models.ResourceProvider, error) {
	return c.getResourceProvider(c.db.WithContext(ctx), ident)
}

// GetResourceProviderByName retrieves a resource provider by its name.
func (c *client) GetResourceProviderByName(ctx context.Context, name string) (*models.ResourceProvider, error) {
	var providers []models.ResourceProvider
	if err := c.db.WithContext(ctx).Where("name = ?", name).Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("failed to get resource provider by name: %w", err)
	}
	switch len(providers) {
	case 0:
		return nil, errdefs.NewNotFound("resource provider", name)
	case 1:
		return &providers[0], nil
	default:
		return nil, errdefs.NewConflict("resource provider", "name", name, len(providers))
	}
}

// ListResourceProviders retrieves resource providers matching the options.
func (c *client) ListResourceProviders(ctx context.Context, opts db.ListOptions) ([]*models.ResourceProvider, error) {
	var marker interface{}
	if opts.Marker != "" {
		rec, err := c.GetResourceProvider(ctx, opts.Marker)
		if err != nil {
			return nil, err
		}
		marker = rec
	}
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.ResourceProvider{}), resourceProviderSpec, opts, marker)
	if err != nil {
		return nil, err
	}
	var providers []*models.ResourceProvider
	if err := query.Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("failed to list resource providers: %w", err)
	}
	return providers, nil
}

// UpdateResourceProvider applies the given field values to a provider.
func (c *client) UpdateResourceProvider(ctx context.Context, ident string, values map[string]interface{}) (*models.ResourceProvider, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.ResourceProvider
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		provider, err := c.getResourceProvider(c.forUpdate(tx), ident)
		if err != nil {
			return err
		}
		if err := models.Apply(provider, values); err != nil {
			return err
		}
		if err := tx.Save(provider).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("resource provider", "name", provider.Name)
			}
			return fmt.Errorf("failed to update resource provider: %w", err)
		}
		updated = provider
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyResourceProvider deletes a resource provider. Inventory and
// allocation records referencing it are intentionally left in place; any
// cascade or guard is the caller's responsibility.
func (c *client) DestroyResourceProvider(ctx context.Context, ident string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		provider, err := c.getResourceProvider(tx, ident)
		if err != nil {
			return err
		}
		result := tx.Delete(&models.ResourceProvider{}, "id = ?", provider.ID)
		if result.Error != nil {
			return fmt.Errorf("failed to destroy resource provider: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errdefs.NewNotFound("resource provider", ident)
		}
		return nil
	})
}

// CreateResourceClass creates a new resource class.
func (c *client) CreateResourceClass(ctx context.Context, class *models.ResourceClass) (*models.ResourceClass, error) {
	if class.UUID == "" {
		class.UUID = identity.New()
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ResourceClass{}).Where("name = ?", class.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check class name: %w", err)
		}
		if count > 0 {
			return errdefs.NewAlreadyExists("resource class", "name", class.Name)
		}
		if err := tx.Create(class).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("resource class", "uuid", class.UUID)
			}
			return fmt.Errorf("failed to create resource class: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return class, nil
}

func (c *client) getResourceClass(tx *gorm.DB, ident string) (*models.ResourceClass, error) {
	resolved, err := identity.Parse(ident)
	if err != nil {
		return nil, err
	}
	if resolved.Kind == identity.KindID {
		tx = tx.Where("id = ?", resolved.ID)
	} else {
		tx = tx.Where("uuid = ?", resolved.UUID)
	}
	var class models.ResourceClass
	if err := tx.First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("resource class", ident)
		}
		return nil, fmt.Errorf("failed to get resource class: %w", err)
	}
	return &class, nil
}

// GetResourceClass retrieves a resource class by its id or uuid.
func (c *client) GetResourceClass(ctx context.Context, ident string) (*models.ResourceClass, error) {
	return c.getResourceClass(c.db.WithContext(ctx), ident)
}

// GetResourceClassByName retrieves a resource class by its name.
func (c *client) GetResourceClassByName(ctx context.Context, name string) (*models.ResourceClass, error) {
	var classes []models.ResourceClass
	if err := c.db.WithContext(ctx).Where("name = ?", name).Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("failed to get resource class by name: %w", err)
	}
	switch len(classes) {
	case 0:
		return nil, errdefs.NewNotFound("resource class", name)
	case 1:
		return &classes[0], nil
	default:
		return nil, errdefs.NewConflict("resource class", "name", name, len(classes))
	}
}

// ListResourceClasses retrieves resource classes matching the options.
func (c *client) ListResourceClasses(ctx context.Context, opts db.ListOptions) ([]*models.ResourceClass, error) {
	var marker interface{}
	if opts.Marker != "" {
		rec, err := c.GetResourceClass(ctx, opts.Marker)
		if err != nil {
			return nil, err
		}
		marker = rec
	}
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.ResourceClass{}), resourceClassSpec, opts, marker)
	if err != nil {
		return nil, err
	}
	var classes []*models.ResourceClass
	if err := query.Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("failed to list resource classes: %w", err)
	}
	return classes, nil
}

// UpdateResourceClass applies the given field values to a resource class.
func (c *client) UpdateResourceClass(ctx context.Context, ident string, values map[string]interface{}) (*models.ResourceClass, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.ResourceClass
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		class, err := c.getResourceClass(c.forUpdate(tx), ident)
		if err != nil {
			return err
		}
		if err := models.Apply(class, values); err != nil {
			return err
		}
		if err := tx.Save(class).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("resource class", "name", class.Name)
			}
			return fmt.Errorf("failed to update resource class: %w", err)
		}
		updated = class
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyResourceClass deletes a resource class.
func (c *client) DestroyResourceClass(ctx context.Context, ident string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		class, err := c.getResourceClass(tx, ident)
		if err != nil {
			return err
		}
		result := tx.Delete(&models.ResourceClass{}, "id = ?", class.ID)
		if result.Error != nil {
			return fmt.Errorf("failed to destroy resource class: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errdefs.NewNotFound("resource class", ident)
		}
		return nil
	})
}

// CreateInventory creates the capacity envelope for one (provider, class)
// pair. A second envelope for the same pair is a uniqueness violation.
func (c *client) CreateInventory(ctx context.Context, inventory *models.Inventory) (*models.Inventory, error) {
	if err := c.db.WithContext(ctx).Create(inventory).Error; err != nil {
		if duplicated(err) {
			return nil, errdefs.NewAlreadyExists("inventory",
				"resource_provider_id", strconv.FormatInt(inventory.ResourceProviderID, 10),
				"resource_class_id", strconv.FormatInt(inventory.ResourceClassID, 10),
			)
		}
		return nil, fmt.Errorf("failed to create inventory: %w", err)
	}
	return inventory, nil
}

func (c *client) getInventory(tx *gorm.DB, id int64) (*models.Inventory, error) {
	var inventory models.Inventory
	if err := tx.Where("id = ?", id).First(&inventory).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("inventory", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return &inventory, nil
}

// GetInventory retrieves an inventory record by its id.
func (c *client) GetInventory(ctx context.Context, id int64) (*models.Inventory, error) {
	return c.getInventory(c.db.WithContext(ctx), id)
}

// ListInventories retrieves inventory records matching the options.
func (c *client) ListInventories(ctx context.Context, opts db.ListOptions) ([]*models.Inventory, error) {
	var marker interface{}
	if opts.Marker != "" {
		id, err := strconv.ParseInt(opts.Marker, 10, 64)
		if err != nil {
			return nil, errdefs.NewInvalidIdentity(opts.Marker)
		}
		rec, err := c.GetInventory(ctx, id)
		if err != nil {
			return nil, err
		}
		marker = rec
	}
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.Inventory{}), inventorySpec, opts, marker)
	if err != nil {
		return nil, err
	}
	var inventories []*models.Inventory
	if err := query.Find(&inventories).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventories: %w", err)
	}
	return inventories, nil
}

// UpdateInventory applies the given field values to an inventory record.
func (c *client) UpdateInventory(ctx context.Context, id int64, values map[string]interface{}) (*models.Inventory, error) {
	if err := models.CheckImmutable(values, "id", "resource_provider_id", "resource_class_id", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.Inventory
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inventory, err := c.getInventory(c.forUpdate(tx), id)
		if err != nil {
			return err
		}
		if err := models.Apply(inventory, values); err != nil {
			return err
		}
		if err := tx.Save(inventory).Error; err != nil {
			return fmt.Errorf("failed to update inventory: %w", err)
		}
		updated = inventory
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyInventory deletes an inventory record.
func (c *client) DestroyInventory(ctx context.Context, id int64) error {
	result := c.db.WithContext(ctx).Delete(&models.Inventory{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to destroy inventory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errdefs.NewNotFound("inventory", strconv.FormatInt(id, 10))
	}
	return nil
}

// CreateAllocation records one consumer's claim against a provider/class
// pair. Multiple claims may coexist for the same pair.
func (c *client) CreateAllocation(ctx context.Context, allocation *models.Allocation) (*models.Allocation, error) {
	if err := c.db.WithContext(ctx).Create(allocation).Error; err != nil {
		return nil, fmt.Errorf("failed to create allocation: %w", err)
	}
	return allocation, nil
}

func (c *client) getAllocation(tx *gorm.DB, id int64) (*models.Allocation, error) {
	var allocation models.Allocation
	if err := tx.Where("id = ?", id).First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("allocation", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	return &allocation, nil
}

// GetAllocation retrieves an allocation by its id.
func (c *client) GetAllocation(ctx context.Context, id int64) (*models.Allocation, error) {
	return c.getAllocation(c.db.WithContext(ctx), id)
}

// ListAllocations retrieves allocations matching the options.
func (c *client) ListAllocations(ctx context.Context, opts db.ListOptions) ([]*models.Allocation, error) {
	var marker interface{}
	if opts.Marker != "" {
		id, err := strconv.ParseInt(opts.Marker, 10, 64)
		if err != nil {
			return nil, errdefs.NewInvalidIdentity(opts.Marker)
		}
		rec, err := c.GetAllocation(ctx, id)
		if err != nil {
			return nil, err
		}
		marker = rec
	}
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.Allocation{}), allocationSpec, opts, marker)
	if err != nil {
		return nil, err
	}
	var allocations []*models.Allocation
	if err := query.Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	return allocations, nil
}

// UpdateAllocation applies the given field values to an allocation.
func (c *client) UpdateAllocation(ctx context.Context, id int64, values map[string]interface{}) (*models.Allocation, error) {
	if err := models.CheckImmutable(values, "id", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.Allocation
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocation, err := c.getAllocation(c.forUpdate(tx), id)
		if err != nil {
			return err
		}
		if err := models.Apply(allocation, values); err != nil {
			return err
		}
		if err := tx.Save(allocation).Error; err != nil {
			return fmt.Errorf("failed to update allocation: %w", err)
		}
		updated = allocation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyAllocation deletes an allocation.
func (c *client) DestroyAllocation(ctx context.Context, id int64) error {
	result := c.db.WithContext(ctx).Delete(&models.Allocation{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to destroy allocation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errdefs.NewNotFound("allocation", strconv.FormatInt(id, 10))
	}
	return nil
}
