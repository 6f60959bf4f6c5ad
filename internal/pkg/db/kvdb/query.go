package kvdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

// listSpec describes the queryable surface of one entity namespace.
type listSpec struct {
	entity  string
	fields  map[string]struct{}
	idField string
}

func newListSpec(entity string, prototype interface{}, idField string) listSpec {
	return listSpec{
		entity:  entity,
		fields:  models.FieldNames(prototype),
		idField: idField,
	}
}

// resolveMarker picks the document field a list marker is matched against.
// Entities carrying both a surrogate id and a uuid accept a marker in either
// form, mirroring how their identity-bearing getters resolve tokens.
func (s listSpec) resolveMarker(marker string) (string, interface{}, error) {
	_, hasID := s.fields["id"]
	_, hasUUID := s.fields["uuid"]
	if !hasID || !hasUUID {
		return s.idField, marker, nil
	}
	ident, err := identity.Parse(marker)
	if err != nil {
		return "", nil, err
	}
	if ident.Kind == identity.KindID {
		return "id", ident.ID, nil
	}
	return "uuid", ident.UUID, nil
}

// record pairs a decoded entity with its generic document form, which is
// what filtering and sorting operate on.
type record[T any] struct {
	rec *T
	doc map[string]interface{}
}

func decodeAll[T any](raws [][]byte) ([]record[T], error) {
	records := make([]record[T], 0, len(raws))
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to deserialize record: %w", err)
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to deserialize record: %w", err)
		}
		records = append(records, record[T]{rec: &rec, doc: doc})
	}
	return records, nil
}

// normalize converts a caller-supplied value into the generic document
// representation so filter and marker comparisons are type-stable.
func normalize(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errdefs.NewInvalidParameter("filters", err.Error())
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errdefs.NewInvalidParameter("filters", err.Error())
	}
	return out, nil
}

// compareValues orders two document values. Documents of one namespace
// store the same type under a given field, so mixed-type comparisons only
// happen against null, which sorts first.
func compareValues(a interface{}, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			break
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			break
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// matches evaluates an exact-match conjunction. A slice-valued filter
// matches when the field equals any member.
func matches(doc map[string]interface{}, filters map[string]interface{}) bool {
	for field, want := range filters {
		have := doc[field]
		if wantList, ok := want.([]interface{}); ok {
			found := false
			for _, candidate := range wantList {
				if compareValues(have, candidate) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if compareValues(have, want) != 0 {
			return false
		}
	}
	return true
}

// runList scans an entity namespace and applies filtering, sorting and
// marker pagination client-side. keep, when set, is an additional
// predicate applied before the caller's filters (tenant scoping).
func runList[T any](ctx context.Context, c *client, namespace string, spec listSpec, opts db.ListOptions, keep func(*T) bool) ([]*T, error) {
	filters := make(map[string]interface{}, len(opts.Filters))
	for field, value := range opts.Filters {
		if _, ok := spec.fields[field]; !ok {
			return nil, errdefs.NewInvalidParameter("filters", fmt.Sprintf("unknown field %s", field))
		}
		normalized, err := normalize(value)
		if err != nil {
			return nil, err
		}
		filters[field] = normalized
	}

	sortKey := opts.SortKey
	if sortKey == "" {
		sortKey = spec.idField
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

	raws, err := c.scanAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	records, err := decodeAll[T](raws)
	if err != nil {
		return nil, err
	}

	filtered := records[:0]
	for _, r := range records {
		if keep != nil && !keep(r.rec) {
			continue
		}
		if matches(r.doc, filters) {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		cmp := compareValues(filtered[i].doc[sortKey], filtered[j].doc[sortKey])
		if cmp == 0 {
			cmp = compareValues(filtered[i].doc[spec.idField], filtered[j].doc[spec.idField])
		}
		if dir == db.SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})

	if opts.Marker != "" {
		markerField, markerValue, err := spec.resolveMarker(opts.Marker)
		if err != nil {
			return nil, err
		}
		marker, err := normalize(markerValue)
		if err != nil {
			return nil, err
		}
		start := -1
		for i, r := range filtered {
			if compareValues(r.doc[markerField], marker) == 0 {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, errdefs.NewNotFound(spec.entity, opts.Marker)
		}
		filtered = filtered[start:]
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	out := make([]*T, 0, len(filtered))
	for _, r := range filtered {
		out = append(out, r.rec)
	}
	return out, nil
}

// findOne resolves a secondary lookup by scanning the namespace with an
// equality predicate. Zero matches is NotFound; several matches mean the
// stored data itself is inconsistent and surface as a conflict.
func findOne[T any](ctx context.Context, c *client, namespace string, spec listSpec, field string, value interface{}, keep func(*T) bool) (*T, error) {
	matched, err := runList[T](ctx, c, namespace, spec, db.ListOptions{Filters: map[string]interface{}{field: value}}, keep)
	if err != nil {
		return nil, err
	}
	switch len(matched) {
	case 0:
		return nil, errdefs.NewNotFound(spec.entity, fmt.Sprint(value))
	case 1:
		return matched[0], nil
	default:
		return nil, errdefs.NewConflict(spec.entity, field, fmt.Sprint(value), len(matched))
	}
}
