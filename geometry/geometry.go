package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/types"
)

var (
	ErrNotLocated     = errors.New("point is not inside the geometry")
	ErrGeometry       = errors.New("invalid geometry")
	ErrNotInitialized = errors.New("flat source regions are not initialized")
)

// Geometry owns the surfaces, cells, universes and materials of one problem.
// Universe 0 is the root. After InitializeFlatSourceRegions every MATERIAL
// cell is replaced for lookups by its subdivided leaves, and each distinct
// path from the root to a leaf is one flat source region.
type Geometry struct {
	ids       *IDAllocator
	surfaces  map[int]*Surface
	cells     map[int]*Cell
	universes map[int]*Universe
	materials map[int]*material.Material
	leaves    map[int][]*Cell // MATERIAL cell id -> subdivided cells
	regions   []flatSourceRegion
	regionIDs map[string]int
	numGroups int
	ready     bool
}

type flatSourceRegion struct {
	cell     *Cell
	material *material.Material
	volume   float64
}

func NewGeometry() *Geometry {
	return &Geometry{
		ids:       NewIDAllocator(),
		surfaces:  make(map[int]*Surface),
		cells:     make(map[int]*Cell),
		universes: make(map[int]*Universe),
		materials: make(map[int]*material.Material),
	}
}

// IDs is the allocator every surface and cell of this geometry draws from
func (g *Geometry) IDs() *IDAllocator { return g.ids }

func (g *Geometry) AddMaterial(m *material.Material) error {
	if _, present := g.materials[m.ID()]; present {
		return fmt.Errorf("%w: duplicate material id %d", ErrGeometry, m.ID())
	}
	g.materials[m.ID()] = m
	g.ready = false
	return nil
}

func (g *Geometry) AddSurface(s *Surface) error {
	if _, present := g.surfaces[s.ID()]; present {
		return fmt.Errorf("%w: duplicate surface id %d", ErrGeometry, s.ID())
	}
	g.surfaces[s.ID()] = s
	return nil
}

// AddCell registers the cell and its bounding surfaces, creating the cell's
// universe on first use
func (g *Geometry) AddCell(c *Cell) (err error) {
	if _, present := g.cells[c.ID()]; present {
		return fmt.Errorf("%w: duplicate cell id %d", ErrGeometry, c.ID())
	}
	u, ok := g.universes[c.Universe()]
	if !ok {
		u = NewUniverse(c.Universe())
		g.universes[u.ID()] = u
	}
	if err = u.AddCell(c); err != nil {
		return fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	for _, id := range c.SurfaceIDs() {
		sh := c.surfaces[id]
		if s, present := g.surfaces[id]; present && s != sh.Surface {
			return fmt.Errorf("%w: cell %d uses a second surface with id %d", ErrGeometry, c.ID(), id)
		}
		g.surfaces[id] = sh.Surface
	}
	g.cells[c.ID()] = c
	g.ready = false
	return
}

func (g *Geometry) Surface(id int) (s *Surface, ok bool) {
	s, ok = g.surfaces[id]
	return
}

func (g *Geometry) Cell(id int) (c *Cell, ok bool) {
	c, ok = g.cells[id]
	return
}

func (g *Geometry) Universe(id int) (u *Universe, ok bool) {
	u, ok = g.universes[id]
	return
}

func (g *Geometry) Material(id int) (m *material.Material, ok bool) {
	m, ok = g.materials[id]
	return
}

// Materials returns the registered materials in ascending id order
func (g *Geometry) Materials() (mats []*material.Material) {
	ids := make([]int, 0, len(g.materials))
	for id := range g.materials {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		mats = append(mats, g.materials[id])
	}
	return
}

// InitializeFlatSourceRegions validates material and fill references,
// subdivides every MATERIAL cell and numbers the flat source regions in depth
// first order from the root universe
func (g *Geometry) InitializeFlatSourceRegions() (err error) {
	g.ready = false
	root, ok := g.universes[0]
	if !ok {
		return fmt.Errorf("%w: no root universe (id 0)", ErrGeometry)
	}
	g.numGroups = 0
	for _, m := range g.Materials() {
		if g.numGroups == 0 {
			g.numGroups = m.NumGroups()
		} else if m.NumGroups() != g.numGroups {
			return fmt.Errorf("%w: material %d has %d energy groups, expected %d",
				ErrGeometry, m.ID(), m.NumGroups(), g.numGroups)
		}
	}
	g.leaves = make(map[int][]*Cell)
	g.regions = g.regions[:0]
	g.regionIDs = make(map[string]int)
	if err = g.buildRegions(root, nil, map[int]bool{}); err != nil {
		return
	}
	if len(g.regions) == 0 {
		return fmt.Errorf("%w: the root universe holds no material cells", ErrGeometry)
	}
	g.ready = true
	return
}

func (g *Geometry) buildRegions(u *Universe, path []*Cell, active map[int]bool) (err error) {
	if active[u.ID()] {
		return fmt.Errorf("%w: universe %d fills itself", ErrGeometry, u.ID())
	}
	active[u.ID()] = true
	defer delete(active, u.ID())
	for _, c := range u.cells {
		switch c.Type() {
		case FILL:
			fill, ok := g.universes[c.Fill()]
			if !ok {
				return fmt.Errorf("%w: cell %d is filled with missing universe %d", ErrGeometry, c.ID(), c.Fill())
			}
			if err = g.buildRegions(fill, append(path, c), active); err != nil {
				return
			}
		case MATERIAL:
			m, ok := g.materials[c.Material()]
			if !ok {
				return fmt.Errorf("%w: cell %d is filled with missing material %d", ErrGeometry, c.ID(), c.Material())
			}
			leaves, found := g.leaves[c.ID()]
			if !found {
				if leaves, err = c.Subdivide(); err != nil {
					return
				}
				g.leaves[c.ID()] = leaves
			}
			for _, leaf := range leaves {
				key := regionKey(path, leaf)
				if _, present := g.regionIDs[key]; present {
					continue
				}
				g.regionIDs[key] = len(g.regions)
				g.regions = append(g.regions, flatSourceRegion{cell: leaf, material: m})
			}
		}
	}
	return
}

func regionKey(path []*Cell, leaf *Cell) string {
	var sb strings.Builder
	for _, c := range path {
		sb.WriteString(strconv.Itoa(c.UID()))
		sb.WriteByte('/')
	}
	sb.WriteString(strconv.Itoa(leaf.UID()))
	return sb.String()
}

// FindCell returns the cells containing p from the root universe down. The
// last entry is a MATERIAL cell, or its subdivided leaf once flat source
// regions are initialized.
func (g *Geometry) FindCell(p r2.Vec) (path []*Cell, err error) {
	u, ok := g.universes[0]
	if !ok {
		err = fmt.Errorf("%w: no root universe (id 0)", ErrGeometry)
		return
	}
	for depth := 0; depth <= len(g.universes); depth++ {
		c, found := u.CellAt(p)
		if !found {
			err = fmt.Errorf("%w: (%g, %g) in universe %d", ErrNotLocated, p.X, p.Y, u.ID())
			return nil, err
		}
		if c.Type() == MATERIAL {
			if leaves, subdivided := g.leaves[c.ID()]; subdivided {
				for _, leaf := range leaves {
					if leaf.Contains(p) {
						return append(path, leaf), nil
					}
				}
				err = fmt.Errorf("%w: (%g, %g) is in cell %d but in none of its subdivisions",
					ErrNotLocated, p.X, p.Y, c.ID())
				return nil, err
			}
			return append(path, c), nil
		}
		path = append(path, c)
		if u, ok = g.universes[c.Fill()]; !ok {
			err = fmt.Errorf("%w: cell %d is filled with missing universe %d", ErrGeometry, c.ID(), c.Fill())
			return nil, err
		}
	}
	err = fmt.Errorf("%w: universe nesting is cyclic", ErrGeometry)
	return nil, err
}

// Locate returns the flat source region holding p and the enclosing path
func (g *Geometry) Locate(p r2.Vec) (region int, path []*Cell, err error) {
	if !g.ready {
		return -1, nil, ErrNotInitialized
	}
	if path, err = g.FindCell(p); err != nil {
		return -1, nil, err
	}
	var ok bool
	if region, ok = g.regionIDs[regionKey(path[:len(path)-1], path[len(path)-1])]; !ok {
		return -1, nil, fmt.Errorf("%w: (%g, %g) has no flat source region", ErrNotLocated, p.X, p.Y)
	}
	return
}

// DistanceToBoundary is the distance along the ray to the first crossing of a
// boundary of any cell on the path, +Inf if there is none
func (g *Geometry) DistanceToBoundary(path []*Cell, p r2.Vec, angle float64) (dist float64, point r2.Vec) {
	dist = math.Inf(1)
	for _, c := range path {
		if d, pt := c.MinDistanceToBoundary(p, angle); d < dist {
			dist, point = d, pt
		}
	}
	return
}

func (g *Geometry) NumRegions() int { return len(g.regions) }

func (g *Geometry) NumEnergyGroups() int { return g.numGroups }

func (g *Geometry) RegionMaterial(region int) *material.Material { return g.regions[region].material }

func (g *Geometry) RegionCell(region int) *Cell { return g.regions[region].cell }

func (g *Geometry) RegionVolume(region int) float64 { return g.regions[region].volume }

func (g *Geometry) SetRegionVolumes(volumes []float64) error {
	if len(volumes) != len(g.regions) {
		return fmt.Errorf("%w: %d volumes for %d flat source regions", ErrGeometry, len(volumes), len(g.regions))
	}
	for r, v := range volumes {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: region %d volume %g", ErrGeometry, r, v)
		}
		g.regions[r].volume = v
	}
	return nil
}

// Extents is the bounding box formed by the axis planes bounding the root
// universe cells, +/-Inf along an axis with no such plane
func (g *Geometry) Extents() (xmin, xmax, ymin, ymax float64) {
	var (
		inf = math.Inf(1)
	)
	xmin, xmax, ymin, ymax = inf, -inf, inf, -inf
	if root, ok := g.universes[0]; ok {
		for _, c := range root.cells {
			for _, sh := range c.surfaces {
				switch sh.Surface.Type() {
				case XPLANE:
					xmin = math.Min(xmin, sh.Surface.position)
					xmax = math.Max(xmax, sh.Surface.position)
				case YPLANE:
					ymin = math.Min(ymin, sh.Surface.position)
					ymax = math.Max(ymax, sh.Surface.position)
				}
			}
		}
	}
	if xmin > xmax {
		xmin, xmax = -inf, inf
	}
	if ymin > ymax {
		ymin, ymax = -inf, inf
	}
	return
}

// BoundaryTypeAt returns the boundary condition of the root universe surface
// p lies on, within tol. Vacuum wins where a vacuum and a reflective surface
// meet, BC_None means p is on no boundary surface.
func (g *Geometry) BoundaryTypeAt(p r2.Vec, tol float64) (bc types.BoundaryType) {
	root, ok := g.universes[0]
	if !ok {
		return
	}
	for _, c := range root.cells {
		for _, sh := range c.surfaces {
			s := sh.Surface
			if s.BoundaryType() == types.BC_None || math.Abs(s.Evaluate(p)) > tol {
				continue
			}
			if s.BoundaryType() == types.BC_Vacuum {
				return types.BC_Vacuum
			}
			bc = s.BoundaryType()
		}
	}
	return
}

func (g *Geometry) String() string {
	var (
		sb strings.Builder
	)
	xmin, xmax, ymin, ymax := g.Extents()
	fmt.Fprintf(&sb, "Geometry: %d surfaces, %d cells, %d universes, %d materials, %d flat source regions\n",
		len(g.surfaces), len(g.cells), len(g.universes), len(g.materials), len(g.regions))
	fmt.Fprintf(&sb, "Extents: x = [%g, %g], y = [%g, %g]", xmin, xmax, ymin, ymax)
	return sb.String()
}
