package integrity

import (
	"sort"

	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Candidate is an assignment able to absorb part of a delta
type Candidate struct {
	ID     uuid.UUID
	UnitID uuid.UUID
	Slack  valueobject.Quantity // what this assignment alone can absorb
}

// Share is the part of a delta given to one candidate
type Share struct {
	ID       uuid.UUID
	UnitID   uuid.UUID
	Quantity valueobject.Quantity
}

// Distribute spreads a positive amount over the candidates, most slack first and
// ties broken by id. unitCapacity optionally caps what all candidates of a unit can
// absorb together; units missing from the map are uncapped. It returns the shares and
// the amount nothing could absorb.
func Distribute(amount valueobject.Quantity, candidates []Candidate, unitCapacity map[uuid.UUID]valueobject.Quantity) ([]Share, valueobject.Quantity) {
	capacity := make(map[uuid.UUID]valueobject.Quantity, len(unitCapacity))
	for id, q := range unitCapacity {
		capacity[id] = q.Positive()
	}
	effective := func(c Candidate) valueobject.Quantity {
		slack := c.Slack.Positive()
		if unitCap, ok := capacity[c.UnitID]; ok {
			slack = valueobject.MinQuantity(slack, unitCap)
		}
		return slack
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := effective(ordered[i]), effective(ordered[j])
		if cmp := si.Cmp(sj); cmp != 0 {
			return cmp > 0
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	remaining := amount.Positive()
	var shares []Share
	for _, c := range ordered {
		if !remaining.IsPositive() {
			break
		}
		take := valueobject.MinQuantity(effective(c), remaining)
		if !take.IsPositive() {
			continue
		}
		if unitCap, ok := capacity[c.UnitID]; ok {
			capacity[c.UnitID] = unitCap.Sub(take)
		}
		remaining = remaining.Sub(take)
		shares = append(shares, Share{ID: c.ID, UnitID: c.UnitID, Quantity: take})
	}
	return shares, remaining
}
