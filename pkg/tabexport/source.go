package tabexport

import "fmt"

// DataSource is the ordered row supply of a component.
type DataSource interface {
	Items() []interface{}
	Value(item interface{}, key string) (interface{}, error)
	// HasChildren marks hierarchical parent rows.
	HasChildren(item interface{}) bool
}

// AccessorProvider is implemented by sources that can resolve a column key
// once up front. A false result means the key is unknown to the source.
type AccessorProvider interface {
	Accessor(key string) (Accessor, bool)
}

// SliceSource serves a typed slice through explicit per-key accessors.
type SliceSource[T any] struct {
	items     []T
	accessors map[string]func(T) interface{}
	parent    func(T) bool
}

// NewSliceSource wraps items. accessors maps column keys to value readers.
func NewSliceSource[T any](items []T, accessors map[string]func(T) interface{}) *SliceSource[T] {
	return &SliceSource[T]{items: items, accessors: accessors}
}

// WithParent sets the predicate that marks parent rows.
func (s *SliceSource[T]) WithParent(fn func(T) bool) *SliceSource[T] {
	s.parent = fn
	return s
}

func (s *SliceSource[T]) Items() []interface{} {
	out := make([]interface{}, len(s.items))
	for i, item := range s.items {
		out[i] = item
	}
	return out
}

func (s *SliceSource[T]) Value(item interface{}, key string) (interface{}, error) {
	fn, ok := s.Accessor(key)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", key)
	}
	return fn(item)
}

func (s *SliceSource[T]) Accessor(key string) (Accessor, bool) {
	get, ok := s.accessors[key]
	if !ok {
		return nil, false
	}
	return func(item interface{}) (interface{}, error) {
		typed, ok := item.(T)
		if !ok {
			return nil, fmt.Errorf("item is %T, not %T", item, typed)
		}
		return get(typed), nil
	}, true
}

func (s *SliceSource[T]) HasChildren(item interface{}) bool {
	if s.parent == nil {
		return false
	}
	typed, ok := item.(T)
	return ok && s.parent(typed)
}

// MapSource serves rows decoded from JSON or similar key/value records.
// Missing keys read as nil.
type MapSource struct {
	rows        []map[string]interface{}
	ChildrenKey string
}

func NewMapSource(rows []map[string]interface{}) *MapSource {
	return &MapSource{rows: rows}
}

func (s *MapSource) Items() []interface{} {
	out := make([]interface{}, len(s.rows))
	for i, row := range s.rows {
		out[i] = row
	}
	return out
}

func (s *MapSource) Value(item interface{}, key string) (interface{}, error) {
	row, ok := item.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("item is %T, not a map", item)
	}
	return row[key], nil
}

// HasChildren is true when the row's ChildrenKey entry is a true boolean.
func (s *MapSource) HasChildren(item interface{}) bool {
	if s.ChildrenKey == "" {
		return false
	}
	row, ok := item.(map[string]interface{})
	if !ok {
		return false
	}
	flag, _ := row[s.ChildrenKey].(bool)
	return flag
}

// TreeNode is one node of a hierarchical source.
type TreeNode struct {
	Item     interface{}
	Children []*TreeNode
}

// TreeSource flattens a forest depth first; nodes with children are parent
// rows. Values are read through the wrapped DataSource.
type TreeSource struct {
	roots []*TreeNode
	inner DataSource
	flat  []interface{}
	kids  map[int]bool
}

// NewTreeSource reads values of each node's Item through inner.
func NewTreeSource(roots []*TreeNode, inner DataSource) *TreeSource {
	s := &TreeSource{roots: roots, inner: inner, kids: make(map[int]bool)}
	var walk func(nodes []*TreeNode)
	walk = func(nodes []*TreeNode) {
		for _, n := range nodes {
			s.kids[len(s.flat)] = len(n.Children) > 0
			s.flat = append(s.flat, treeItem{index: len(s.flat), item: n.Item})
			walk(n.Children)
		}
	}
	walk(roots)
	return s
}

type treeItem struct {
	index int
	item  interface{}
}

func (s *TreeSource) Items() []interface{} {
	return append([]interface{}(nil), s.flat...)
}

func (s *TreeSource) Value(item interface{}, key string) (interface{}, error) {
	ti, ok := item.(treeItem)
	if !ok {
		return nil, fmt.Errorf("item is %T, not a tree item", item)
	}
	return s.inner.Value(ti.item, key)
}

func (s *TreeSource) Accessor(key string) (Accessor, bool) {
	provider, ok := s.inner.(AccessorProvider)
	if !ok {
		return func(item interface{}) (interface{}, error) { return s.Value(item, key) }, true
	}
	inner, ok := provider.Accessor(key)
	if !ok {
		return nil, false
	}
	return func(item interface{}) (interface{}, error) {
		ti, ok := item.(treeItem)
		if !ok {
			return nil, fmt.Errorf("item is %T, not a tree item", item)
		}
		return inner(ti.item)
	}, true
}

func (s *TreeSource) HasChildren(item interface{}) bool {
	ti, ok := item.(treeItem)
	return ok && s.kids[ti.index]
}
