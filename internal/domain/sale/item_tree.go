package sale

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const noParent = -1

// ItemTree is an arena of sale items indexed by id.
// Parent and children links are arena indexes, so ownership stays single-directional.
type ItemTree struct {
	nodes []*Item
	index map[uuid.UUID]int
	roots []int
}

// NewItemTree creates an empty item tree
func NewItemTree() *ItemTree {
	return &ItemTree{
		index: make(map[uuid.UUID]int),
	}
}

// Add inserts an item under the given parent; uuid.Nil adds a root item
func (t *ItemTree) Add(parentID uuid.UUID, item *Item) error {
	if item == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Item cannot be nil")
	}
	if _, exists := t.index[item.ID]; exists {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Item %s already in tree", item.ID))
	}

	pos := len(t.nodes)
	if parentID == uuid.Nil {
		item.parent = noParent
		t.roots = append(t.roots, pos)
	} else {
		parentPos, ok := t.index[parentID]
		if !ok {
			return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Parent item %s not found", parentID))
		}
		item.parent = parentPos
		t.nodes[parentPos].children = append(t.nodes[parentPos].children, pos)
	}
	item.children = nil

	t.nodes = append(t.nodes, item)
	t.index[item.ID] = pos
	return nil
}

// Len returns the number of items in the tree
func (t *ItemTree) Len() int {
	return len(t.nodes)
}

// Get returns the item with the given id
func (t *ItemTree) Get(id uuid.UUID) (*Item, bool) {
	pos, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.nodes[pos], true
}

// Parent returns the parent of the given item, if any
func (t *ItemTree) Parent(id uuid.UUID) (*Item, bool) {
	pos, ok := t.index[id]
	if !ok || t.nodes[pos].parent == noParent {
		return nil, false
	}
	return t.nodes[t.nodes[pos].parent], true
}

// Children returns the direct children of the given item
func (t *ItemTree) Children(id uuid.UUID) []*Item {
	pos, ok := t.index[id]
	if !ok {
		return nil
	}
	children := make([]*Item, 0, len(t.nodes[pos].children))
	for _, c := range t.nodes[pos].children {
		children = append(children, t.nodes[c])
	}
	return children
}

// HasChildren returns true if the item owns at least one child
func (t *ItemTree) HasChildren(id uuid.UUID) bool {
	pos, ok := t.index[id]
	return ok && len(t.nodes[pos].children) > 0
}

// Roots returns the root items in insertion order
func (t *ItemTree) Roots() []*Item {
	roots := make([]*Item, 0, len(t.roots))
	for _, r := range t.roots {
		roots = append(roots, t.nodes[r])
	}
	return roots
}

// TotalQuantity returns own quantity × product of all ancestor quantities.
// Unknown items have a zero total quantity.
func (t *ItemTree) TotalQuantity(id uuid.UUID) valueobject.Quantity {
	pos, ok := t.index[id]
	if !ok {
		return valueobject.ZeroQuantity()
	}
	total := t.nodes[pos].Quantity
	for p := t.nodes[pos].parent; p != noParent; p = t.nodes[p].parent {
		total = total.Mul(t.nodes[p].Quantity)
	}
	return total
}

// Walk visits items depth-first in insertion order.
// Returning false from fn skips the visited item's children.
func (t *ItemTree) Walk(fn func(item *Item, depth int) bool) {
	type frame struct {
		pos   int
		depth int
	}
	stack := make([]frame, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{pos: t.roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := t.nodes[f.pos]
		if !fn(node, f.depth) {
			continue
		}
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, frame{pos: node.children[i], depth: f.depth + 1})
		}
	}
}

// All returns every item in depth-first order
func (t *ItemTree) All() []*Item {
	items := make([]*Item, 0, len(t.nodes))
	t.Walk(func(item *Item, _ int) bool {
		items = append(items, item)
		return true
	})
	return items
}
