package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	ErrHalfspace     = errors.New("halfspace must be -1 or +1")
	ErrNegativeCount = errors.New("ring and sector counts must be non-negative")
	ErrCellType      = errors.New("operation not valid for this cell type")
)

type CellType uint8

const (
	MATERIAL CellType = iota
	FILL
)

func (ct CellType) String() string {
	switch ct {
	case MATERIAL:
		return "MATERIAL"
	case FILL:
		return "FILL"
	}
	return "UNKNOWN"
}

// SurfaceHalfspace is a non-owning surface reference and the side of it a
// cell lies on
type SurfaceHalfspace struct {
	Surface   *Surface
	Halfspace int
}

// Cell is the intersection of a set of surface halfspaces. A MATERIAL cell is
// filled with a material and may be subdivided into rings and sectors, a FILL
// cell is filled with another universe.
type Cell struct {
	id, uid    int
	cellType   CellType
	universe   int
	material   int // MATERIAL cells
	fill       int // FILL cells
	numRings   int
	numSectors int
	surfaces   map[int]SurfaceHalfspace
	ids        *IDAllocator
}

func newCell(ids *IDAllocator, ct CellType, id, universe int) (c *Cell, err error) {
	c = &Cell{
		cellType: ct,
		universe: universe,
		surfaces: make(map[int]SurfaceHalfspace),
		ids:      ids,
	}
	if c.id, c.uid, err = ids.CellID(id); err != nil {
		return nil, err
	}
	return
}

func NewMaterialCell(ids *IDAllocator, id, universe, materialID int) (c *Cell, err error) {
	if c, err = newCell(ids, MATERIAL, id, universe); err != nil {
		return
	}
	c.material = materialID
	return
}

func NewFillCell(ids *IDAllocator, id, universe, fillUniverse int) (c *Cell, err error) {
	if c, err = newCell(ids, FILL, id, universe); err != nil {
		return
	}
	c.fill = fillUniverse
	return
}

func (c *Cell) ID() int          { return c.id }
func (c *Cell) UID() int         { return c.uid }
func (c *Cell) Type() CellType   { return c.cellType }
func (c *Cell) Universe() int    { return c.universe }
func (c *Cell) Material() int    { return c.material }
func (c *Cell) Fill() int        { return c.fill }
func (c *Cell) NumRings() int    { return c.numRings }
func (c *Cell) NumSectors() int  { return c.numSectors }
func (c *Cell) NumSurfaces() int { return len(c.surfaces) }

func (c *Cell) SetMaterial(materialID int) error {
	if c.cellType != MATERIAL {
		return fmt.Errorf("cell %d: set material on a %s cell: %w", c.id, c.cellType, ErrCellType)
	}
	c.material = materialID
	return nil
}

func (c *Cell) SetNumRings(n int) error {
	if n < 0 {
		return fmt.Errorf("cell %d: %d rings: %w", c.id, n, ErrNegativeCount)
	}
	if n > 0 && c.cellType != MATERIAL {
		return fmt.Errorf("cell %d: rings on a %s cell: %w", c.id, c.cellType, ErrCellType)
	}
	c.numRings = n
	return nil
}

// SetNumSectors stores the sector count, a single sector is the whole cell
// and is stored as none
func (c *Cell) SetNumSectors(n int) error {
	if n < 0 {
		return fmt.Errorf("cell %d: %d sectors: %w", c.id, n, ErrNegativeCount)
	}
	if n > 0 && c.cellType != MATERIAL {
		return fmt.Errorf("cell %d: sectors on a %s cell: %w", c.id, c.cellType, ErrCellType)
	}
	if n == 1 {
		n = 0
	}
	c.numSectors = n
	return nil
}

// AddBoundary bounds the cell by one side of s. Adding a surface already
// present replaces its halfspace.
func (c *Cell) AddBoundary(s *Surface, halfspace int) error {
	if halfspace != -1 && halfspace != 1 {
		return fmt.Errorf("cell %d, surface %d: halfspace %d: %w", c.id, s.ID(), halfspace, ErrHalfspace)
	}
	c.surfaces[s.ID()] = SurfaceHalfspace{Surface: s, Halfspace: halfspace}
	return nil
}

func (c *Cell) RemoveBoundary(surfaceID int) { delete(c.surfaces, surfaceID) }

// SurfaceIDs returns the bounding surface ids in ascending order
func (c *Cell) SurfaceIDs() (ids []int) {
	ids = make([]int, 0, len(c.surfaces))
	for id := range c.surfaces {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return
}

func (c *Cell) Boundary(surfaceID int) (sh SurfaceHalfspace, ok bool) {
	sh, ok = c.surfaces[surfaceID]
	return
}

// Contains is true when p is on the correct side of every bounding surface.
// Points on a boundary, within ON_SURFACE_THRESH, are inside.
func (c *Cell) Contains(p r2.Vec) bool {
	for _, sh := range c.surfaces {
		if sh.Surface.Evaluate(p)*float64(sh.Halfspace) < -ON_SURFACE_THRESH {
			return false
		}
	}
	return true
}

// MinDistanceToBoundary is the distance along the ray to the nearest bounding
// surface crossing, +Inf when the ray never leaves the cell
func (c *Cell) MinDistanceToBoundary(p r2.Vec, angle float64) (dist float64, point r2.Vec) {
	dist = math.Inf(1)
	for _, sh := range c.surfaces {
		if d, pt := sh.Surface.MinDistance(p, angle); d < dist {
			dist, point = d, pt
		}
	}
	return
}

// Clone copies everything but the identity. Surfaces are shared, the
// halfspace associations are copied.
func (c *Cell) Clone() (cl *Cell, err error) {
	if cl, err = newCell(c.ids, c.cellType, 0, c.universe); err != nil {
		return
	}
	cl.material, cl.fill = c.material, c.fill
	cl.numRings, cl.numSectors = c.numRings, c.numSectors
	for id, sh := range c.surfaces {
		cl.surfaces[id] = sh
	}
	return
}

func (c *Cell) String() string {
	var (
		sb strings.Builder
	)
	fmt.Fprintf(&sb, "Cell id = %d, type = %s", c.id, c.cellType)
	switch c.cellType {
	case MATERIAL:
		fmt.Fprintf(&sb, ", material id = %d", c.material)
	case FILL:
		fmt.Fprintf(&sb, ", fill universe = %d", c.fill)
	}
	fmt.Fprintf(&sb, ", universe = %d, num_surfaces = %d, num of rings = %d, num of sectors = %d, surface ids = ",
		c.universe, len(c.surfaces), c.numRings, c.numSectors)
	for i, id := range c.SurfaceIDs() {
		if i != 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", c.surfaces[id].Halfspace*id)
	}
	return sb.String()
}
