package geometry

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Universe is a set of cells sharing one coordinate frame. Cells are kept in
// ascending id order, which is the order they are searched in.
type Universe struct {
	id    int
	cells []*Cell
}

func NewUniverse(id int) *Universe {
	return &Universe{id: id}
}

func (u *Universe) ID() int        { return u.id }
func (u *Universe) Cells() []*Cell { return u.cells }
func (u *Universe) NumCells() int  { return len(u.cells) }
func (u *Universe) IsRoot() bool   { return u.id == 0 }

func (u *Universe) String() string {
	return fmt.Sprintf("Universe id = %d, num cells = %d", u.id, len(u.cells))
}

func (u *Universe) AddCell(c *Cell) error {
	if c.Universe() != u.id {
		return fmt.Errorf("cell %d belongs to universe %d, not universe %d", c.ID(), c.Universe(), u.id)
	}
	i := sort.Search(len(u.cells), func(i int) bool { return u.cells[i].ID() >= c.ID() })
	if i < len(u.cells) && u.cells[i].ID() == c.ID() {
		return fmt.Errorf("universe %d already holds a cell with id %d", u.id, c.ID())
	}
	u.cells = append(u.cells, nil)
	copy(u.cells[i+1:], u.cells[i:])
	u.cells[i] = c
	return nil
}

// CellAt returns the first cell containing p
func (u *Universe) CellAt(p r2.Vec) (c *Cell, ok bool) {
	for _, c = range u.cells {
		if c.Contains(p) {
			return c, true
		}
	}
	return nil, false
}
