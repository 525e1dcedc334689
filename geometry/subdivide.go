package geometry

import (
	"errors"
	"fmt"
	"math"
)

var ErrRingify = errors.New("unable to ringify cell")

// Subdivide splits the cell into sectors and then rings, returning the leaf
// cells. With both requested the leaves are ordered ring by ring, and within
// each ring sector by sector. A cell with neither is returned alone.
func (c *Cell) Subdivide() (cells []*Cell, err error) {
	if c.numRings == 0 && c.numSectors == 0 {
		return []*Cell{c}, nil
	}
	var sectors []*Cell
	if sectors, err = c.sectorize(); err != nil {
		return
	}
	if c.numRings == 0 {
		return sectors, nil
	}
	return c.ringify(sectors)
}

// sectorize builds numSectors planes cos(k*d)*x + sin(k*d)*y = 0 through the
// origin, d = 2pi/numSectors. Wedge k lies on the positive side of plane k
// and the negative side of plane k+1, which is redundant for two sectors.
func (c *Cell) sectorize() (sectors []*Cell, err error) {
	if c.numSectors == 0 {
		return
	}
	var (
		n      = c.numSectors
		dAzim  = 2. * math.Pi / float64(n)
		planes = make([]*Surface, n)
	)
	for k := 0; k < n; k++ {
		phi := float64(k) * dAzim
		if planes[k], err = NewPlane(c.ids, math.Cos(phi), math.Sin(phi), 0., 0); err != nil {
			return
		}
	}
	sectors = make([]*Cell, n)
	for k := 0; k < n; k++ {
		var sector *Cell
		if sector, err = c.leafClone(); err != nil {
			return nil, err
		}
		_ = sector.AddBoundary(planes[k], +1)
		if n != 2 {
			_ = sector.AddBoundary(planes[(k+1)%n], -1)
		}
		sectors[k] = sector
	}
	return
}

func (c *Cell) leafClone() (cl *Cell, err error) {
	if cl, err = c.Clone(); err != nil {
		return
	}
	cl.numRings, cl.numSectors = 0, 0
	return
}

// ringCircles checks the cell bounds the interior of one circle, or the
// annulus between two concentric circles. inner is nil for a single circle.
func (c *Cell) ringCircles() (outer, inner *Surface, err error) {
	var (
		numCircles int
	)
	for _, id := range c.SurfaceIDs() {
		sh := c.surfaces[id]
		if sh.Surface.Type() != CIRCLE {
			continue
		}
		numCircles++
		switch sh.Halfspace {
		case -1:
			if outer != nil {
				err = fmt.Errorf("%w %d: it lies inside both circle %d and circle %d",
					ErrRingify, c.id, outer.ID(), sh.Surface.ID())
				return
			}
			outer = sh.Surface
		case +1:
			if inner != nil {
				err = fmt.Errorf("%w %d: it lies outside both circle %d and circle %d",
					ErrRingify, c.id, inner.ID(), sh.Surface.ID())
				return
			}
			inner = sh.Surface
		}
	}
	switch {
	case numCircles == 0:
		err = fmt.Errorf("%w %d: it does not contain any CIRCLE surface", ErrRingify, c.id)
	case numCircles > 2:
		err = fmt.Errorf("%w %d: it contains %d CIRCLE surfaces, at most 2 are allowed",
			ErrRingify, c.id, numCircles)
	case outer == nil:
		err = fmt.Errorf("%w %d: it only contains the positive halfspace of circle %d, "+
			"rings can only be created on the interior of a circle", ErrRingify, c.id, inner.ID())
	case inner != nil && outer.Center() != inner.Center():
		err = fmt.Errorf("%w %d: circle %d is centered at (%g, %g) and circle %d at (%g, %g), "+
			"both circles must have the same center", ErrRingify, c.id,
			outer.ID(), outer.Center().X, outer.Center().Y,
			inner.ID(), inner.Center().X, inner.Center().Y)
	case inner != nil && outer.Radius() <= inner.Radius():
		err = fmt.Errorf("%w %d: the halfspaces of circle %d (radius %g) and circle %d (radius %g) "+
			"describe disjoint regions, switch the signs of the two halfspaces", ErrRingify, c.id,
			outer.ID(), outer.Radius(), inner.ID(), inner.Radius())
	}
	return
}

// ringify cuts the cell into numRings annuli of equal area. Each ring is
// bounded by the inside of its outer circle and, except for the innermost,
// the outside of the next circle in. When sectors are given every sector is
// ringed in turn.
func (c *Cell) ringify(sectors []*Cell) (rings []*Cell, err error) {
	var (
		outer, inner *Surface
		r1, r2       float64
		n            = c.numRings
	)
	if outer, inner, err = c.ringCircles(); err != nil {
		return
	}
	r1 = outer.Radius()
	if inner != nil {
		r2 = inner.Radius()
	}
	var (
		x0, y0  = outer.Center().X, outer.Center().Y
		area    = math.Pi * math.Abs(r1*r1-r2*r2) / float64(n)
		circles = make([]*Surface, 0, n)
		circle  *Surface
	)
	for i := 0; i < n-1; i++ {
		if circle, err = NewCircle(c.ids, x0, y0, r1, 0); err != nil {
			return
		}
		circles = append(circles, circle)
		r1 = math.Sqrt(r1*r1 - area/math.Pi)
	}
	if circle, err = NewCircle(c.ids, x0, y0, r1, 0); err != nil {
		return
	}
	circles = append(circles, circle)

	parents := sectors
	if len(parents) == 0 {
		parents = []*Cell{c}
	}
	rings = make([]*Cell, 0, n*len(parents))
	for i, circle := range circles {
		for _, parent := range parents {
			var ring *Cell
			if ring, err = parent.leafClone(); err != nil {
				return nil, err
			}
			_ = ring.AddBoundary(circle, -1)
			if i+1 < len(circles) {
				_ = ring.AddBoundary(circles[i+1], +1)
			}
			rings = append(rings, ring)
		}
	}
	return
}
