// Package quota resolves effective per-project resource limits. A project
// specific quota row wins; otherwise the quota class assigned to the
// project applies, with the "default" class as the final fallback; when
// neither exists the resource is unrestricted.
package quota

import (
	"context"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

// DefaultClassName is the fallback quota class.
const DefaultClassName = "default"

// Limits is the aggregate projection of a quota class or of a project's
// effective quotas: one hard limit per resource.
type Limits struct {
	ClassName string
	Resources map[string]int64
}

type Engine interface {
	EffectiveLimit(ctx context.Context, projectID string, className string, resource string) (int64, bool, error)
	ProjectLimits(ctx context.Context, projectID string, className string) (*Limits, error)
	DefaultClass(ctx context.Context) (*Limits, error)
	GetAllByName(ctx context.Context, className string) (*Limits, error)
	SetProjectQuota(ctx context.Context, projectID string, resource string, hardLimit int64) (*models.Quota, error)
	SetClassQuota(ctx context.Context, className string, resource string, hardLimit int64) (*models.QuotaClass, error)
}

type engine struct {
	conn db.Connection
}

// NewEngine creates a new quota engine on the given connection.
func NewEngine(conn db.Connection) Engine {
	return &engine{conn: conn}
}

// EffectiveLimit resolves the limit for one project and resource. The
// second return value is false when no restriction applies, either because
// no row exists or because the resolved limit is the unlimited sentinel.
func (e *engine) EffectiveLimit(ctx context.Context, projectID string, className string, resource string) (int64, bool, error) {
	quota, err := e.conn.GetQuota(ctx, projectID, resource)
	if err == nil {
		return quota.HardLimit, quota.HardLimit != models.UnlimitedQuota, nil
	}
	if !errdefs.IsNotFound(err) {
		return 0, false, err
	}

	if className == "" {
		className = DefaultClassName
	}
	class, err := e.conn.GetQuotaClass(ctx, className, resource)
	if err == nil {
		return class.HardLimit, class.HardLimit != models.UnlimitedQuota, nil
	}
	if !errdefs.IsNotFound(err) {
		return 0, false, err
	}
	if className != DefaultClassName {
		class, err = e.conn.GetQuotaClass(ctx, DefaultClassName, resource)
		if err == nil {
			return class.HardLimit, class.HardLimit != models.UnlimitedQuota, nil
		}
		if !errdefs.IsNotFound(err) {
			return 0, false, err
		}
	}
	return models.UnlimitedQuota, false, nil
}

// classLimits aggregates the rows of one quota class into a Limits map.
func (e *engine) classLimits(ctx context.Context, className string) (*Limits, error) {
	rows, err := e.conn.ListQuotaClasses(ctx, db.ListOptions{
		Filters: map[string]interface{}{"class_name": className},
	})
	if err != nil {
		return nil, err
	}
	limits := &Limits{
		ClassName: className,
		Resources: make(map[string]int64, len(rows)),
	}
	for _, row := range rows {
		limits.Resources[row.Resource] = row.HardLimit
	}
	return limits, nil
}

// ProjectLimits aggregates the effective limits of one project: the
// assigned class (or the default class) overlaid with the project's own
// quota rows.
func (e *engine) ProjectLimits(ctx context.Context, projectID string, className string) (*Limits, error) {
	if className == "" {
		className = DefaultClassName
	}
	limits, err := e.classLimits(ctx, className)
	if err != nil {
		return nil, err
	}
	rows, err := e.conn.ListQuotas(ctx, db.ListOptions{
		Filters: map[string]interface{}{"project_id": projectID},
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		limits.Resources[row.Resource] = row.HardLimit
	}
	return limits, nil
}

// DefaultClass returns the aggregate limits of the fallback class.
func (e *engine) DefaultClass(ctx context.Context) (*Limits, error) {
	return e.classLimits(ctx, DefaultClassName)
}

// GetAllByName returns the aggregate limits of a named class.
func (e *engine) GetAllByName(ctx context.Context, className string) (*Limits, error) {
	return e.classLimits(ctx, className)
}

// SetProjectQuota creates or updates the quota row for one project and
// resource.
func (e *engine) SetProjectQuota(ctx context.Context, projectID string, resource string, hardLimit int64) (*models.Quota, error) {
	quota, err := e.conn.UpdateQuota(ctx, projectID, resource, map[string]interface{}{"hard_limit": hardLimit})
	if err == nil {
		return quota, nil
	}
	if !errdefs.IsNotFound(err) {
		return nil, err
	}
	return e.conn.CreateQuota(ctx, &models.Quota{
		ProjectID: projectID,
		Resource:  resource,
		HardLimit: hardLimit,
	})
}

// SetClassQuota creates or updates the quota class row for one class and
// resource.
func (e *engine) SetClassQuota(ctx context.Context, className string, resource string, hardLimit int64) (*models.QuotaClass, error) {
	class, err := e.conn.UpdateQuotaClass(ctx, className, resource, map[string]interface{}{"hard_limit": hardLimit})
	if err == nil {
		return class, nil
	}
	if !errdefs.IsNotFound(err) {
		return nil, err
	}
	return e.conn.CreateQuotaClass(ctx, &models.QuotaClass{
		ClassName: className,
		Resource:  resource,
		HardLimit: hardLimit,
	})
}
