package stock

import "github.com/google/uuid"

// Persister records the stock entities touched by an update so that the caller
// can flush them in a single transaction.
type Persister interface {
	PersistUnit(u *Unit)
	PersistAssignment(a *Assignment)
	RemoveAssignment(a *Assignment)
}

// ChangeSet is the default Persister; it keeps touched entities in insertion order
type ChangeSet struct {
	units       []*Unit
	assignments []*Assignment
	removed     []*Assignment
	seen        map[uuid.UUID]struct{}
}

// NewChangeSet creates an empty change set
func NewChangeSet() *ChangeSet {
	return &ChangeSet{seen: make(map[uuid.UUID]struct{})}
}

// PersistUnit implements Persister
func (c *ChangeSet) PersistUnit(u *Unit) {
	if c.mark(u.ID) {
		c.units = append(c.units, u)
	}
}

// PersistAssignment implements Persister
func (c *ChangeSet) PersistAssignment(a *Assignment) {
	if c.isRemoved(a) {
		return
	}
	if c.mark(a.ID) {
		c.assignments = append(c.assignments, a)
	}
}

// RemoveAssignment implements Persister. A removed assignment is no longer persisted.
func (c *ChangeSet) RemoveAssignment(a *Assignment) {
	if c.isRemoved(a) {
		return
	}
	c.removed = append(c.removed, a)
	for i, existing := range c.assignments {
		if existing.ID == a.ID {
			c.assignments = append(c.assignments[:i:i], c.assignments[i+1:]...)
			break
		}
	}
}

// Units returns the units to save
func (c *ChangeSet) Units() []*Unit {
	return c.units
}

// Assignments returns the assignments to save
func (c *ChangeSet) Assignments() []*Assignment {
	return c.assignments
}

// Removed returns the assignments to delete
func (c *ChangeSet) Removed() []*Assignment {
	return c.removed
}

// IsEmpty returns true if nothing was recorded
func (c *ChangeSet) IsEmpty() bool {
	return len(c.units) == 0 && len(c.assignments) == 0 && len(c.removed) == 0
}

// UnitIDs returns the ids of the touched units
func (c *ChangeSet) UnitIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.units))
	for _, u := range c.units {
		ids = append(ids, u.ID)
	}
	return ids
}

func (c *ChangeSet) mark(id uuid.UUID) bool {
	if _, ok := c.seen[id]; ok {
		return false
	}
	c.seen[id] = struct{}{}
	return true
}

func (c *ChangeSet) isRemoved(a *Assignment) bool {
	for _, r := range c.removed {
		if r.ID == a.ID {
			return true
		}
	}
	return false
}

var _ Persister = (*ChangeSet)(nil)
