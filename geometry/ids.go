package geometry

import (
	"errors"
	"fmt"
	"sync"
)

// AutoIDFloor is the first automatically generated id. User supplied ids
// must lie in [1, AutoIDFloor), zero requests an automatic id.
const AutoIDFloor = 10000

var ErrReservedID = errors.New("id is reserved for automatic assignment")

// IDAllocator hands out surface and cell ids from two independent counters.
// One allocator is shared by every object built into the same geometry and
// lives as long as that geometry does.
type IDAllocator struct {
	mu                       sync.Mutex
	nextSurf, nextCell       int
	nextSurfUID, nextCellUID int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		nextSurf: AutoIDFloor,
		nextCell: AutoIDFloor,
	}
}

// SurfaceID validates a user id or generates one when id is zero, and
// returns the id along with a uid unique within this allocator
func (a *IDAllocator) SurfaceID(id int) (ID, UID int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ID, err = assign(id, &a.nextSurf, "surface"); err != nil {
		return
	}
	UID = a.nextSurfUID
	a.nextSurfUID++
	return
}

// CellID is the cell counterpart of SurfaceID
func (a *IDAllocator) CellID(id int) (ID, UID int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ID, err = assign(id, &a.nextCell, "cell"); err != nil {
		return
	}
	UID = a.nextCellUID
	a.nextCellUID++
	return
}

func assign(id int, next *int, kind string) (ID int, err error) {
	switch {
	case id == 0:
		ID = *next
		*next++
	case id < 0 || id >= AutoIDFloor:
		err = fmt.Errorf("unable to set the id of a %s to %d, user ids must be in [1, %d): %w",
			kind, id, AutoIDFloor, ErrReservedID)
	default:
		ID = id
	}
	return
}
