package zarr

import (
	"context"
	"errors"
	"fmt"
)

// Group is a handle on a Zarr v2 group. When the group was opened
// through consolidated metadata, members resolve from the in-memory
// tree instead of further store fetches.
type Group struct {
	store Store
	path  string
	attrs map[string]any

	croot   *ConsolidatedMeta // shared across the hierarchy, nil if unconsolidated
	cprefix string            // this node's path relative to the consolidated root
}

// OpenGroup opens the group stored under path. It prefers the root's
// ".zmetadata", which describes the whole hierarchy in one object, and
// falls back to the plain ".zgroup" document when the root was never
// consolidated.
func OpenGroup(ctx context.Context, store Store, path string) (*Group, error) {
	raw, err := store.Get(ctx, joinKey(path, consolidatedKey))
	switch {
	case err == nil:
		c, cerr := ParseConsolidatedMeta(raw)
		if cerr != nil {
			return nil, fmt.Errorf("group %q: %w", path, cerr)
		}
		attrs, aerr := parseAttrs(c.Metadata[attrsKey])
		if aerr != nil {
			return nil, fmt.Errorf("group %q: %w", path, aerr)
		}
		return &Group{store: store, path: path, attrs: attrs, croot: c}, nil
	case errors.Is(err, ErrNotFound):
		return openPlainGroup(ctx, store, path)
	default:
		return nil, fmt.Errorf("opening group %q: %w", path, err)
	}
}

func openPlainGroup(ctx context.Context, store Store, path string) (*Group, error) {
	raw, err := store.Get(ctx, joinKey(path, groupMetaKey))
	if err != nil {
		return nil, fmt.Errorf("opening group %q: %w", path, err)
	}
	var gm GroupMeta
	if err := parseGroupMeta(raw, &gm); err != nil {
		return nil, fmt.Errorf("group %q: %w", path, err)
	}
	attrsRaw, err := store.Get(ctx, joinKey(path, attrsKey))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("reading attributes of group %q: %w", path, err)
	}
	attrs, err := parseAttrs(attrsRaw)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", path, err)
	}
	return &Group{store: store, path: path, attrs: attrs}, nil
}

// Path returns the group's location within its store.
func (g *Group) Path() string { return g.path }

// Attrs returns the group's user attributes. The map is shared, not a
// copy.
func (g *Group) Attrs() map[string]any { return g.attrs }

// Consolidated reports whether members resolve from consolidated
// metadata.
func (g *Group) Consolidated() bool { return g.croot != nil }

// Array opens the member array at name, which may be a nested path
// such as "2m_above_ground/TMP".
func (g *Group) Array(ctx context.Context, name string) (*Array, error) {
	if g.croot == nil {
		return OpenArray(ctx, g.store, joinKey(g.path, name))
	}
	node := joinKey(g.cprefix, name)
	metaRaw, ok := g.croot.Metadata[joinKey(node, arrayMetaKey)]
	if !ok {
		return nil, fmt.Errorf("array %q: %w", joinKey(g.path, name), ErrNotFound)
	}
	return NewArray(g.store, joinKey(g.path, node), metaRaw, g.croot.Metadata[joinKey(node, attrsKey)])
}

// Group opens the member group at name.
func (g *Group) Group(ctx context.Context, name string) (*Group, error) {
	if g.croot == nil {
		return openPlainGroup(ctx, g.store, joinKey(g.path, name))
	}
	node := joinKey(g.cprefix, name)
	if _, ok := g.croot.Metadata[joinKey(node, groupMetaKey)]; !ok {
		return nil, fmt.Errorf("group %q: %w", joinKey(g.path, name), ErrNotFound)
	}
	attrs, err := parseAttrs(g.croot.Metadata[joinKey(node, attrsKey)])
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", joinKey(g.path, name), err)
	}
	return &Group{store: g.store, path: joinKey(g.path, node), attrs: attrs, croot: g.croot, cprefix: node}, nil
}
