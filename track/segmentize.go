package track

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/gomoc/geometry"
	"github.com/notargets/gomoc/material"
)

const (
	TINY_MOVE    = 1.e-10 // Step past a crossing so the next point lands in the next region
	MAX_SEGMENTS = 1 << 20
)

// Tracer is the geometry a ray is walked through
type Tracer interface {
	Locate(p r2.Vec) (region int, path []*geometry.Cell, err error)
	DistanceToBoundary(path []*geometry.Cell, p r2.Vec, angle float64) (dist float64, point r2.Vec)
	RegionMaterial(region int) *material.Material
}

// Segmentize walks the ray leaving start at angle through g until it leaves
// the geometry, returning one segment per region crossing and the exit point.
// Consecutive crossings of the same region are merged.
func Segmentize(g Tracer, start r2.Vec, angle float64) (segments []Segment, end r2.Vec, err error) {
	var (
		dir    = r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}
		p      = start
		region int
		path   []*geometry.Cell
	)
	if region, path, err = g.Locate(p); err != nil {
		err = fmt.Errorf("track start (%g, %g): %w", p.X, p.Y, err)
		return
	}
	emit := func(region int, length float64) {
		if n := len(segments); n > 0 && segments[n-1].Region == region {
			segments[n-1].Length += length
			return
		}
		segments = append(segments, Segment{Region: region, Length: length, Material: g.RegionMaterial(region)})
	}
	for i := 0; i < MAX_SEGMENTS; i++ {
		dist, _ := g.DistanceToBoundary(path, p, angle)
		if math.IsInf(dist, 1) {
			err = fmt.Errorf("%w: ray from (%g, %g) at angle %g never leaves region %d",
				ErrTrack, p.X, p.Y, angle, region)
			return nil, end, err
		}
		next := r2.Add(p, r2.Scale(dist+TINY_MOVE, dir))
		nextRegion, nextPath, lerr := g.Locate(next)
		if errors.Is(lerr, geometry.ErrNotLocated) {
			emit(region, dist)
			end = r2.Add(p, r2.Scale(dist, dir))
			return
		}
		if lerr != nil {
			return nil, end, lerr
		}
		emit(region, dist+TINY_MOVE)
		p, region, path = next, nextRegion, nextPath
	}
	err = fmt.Errorf("%w: ray from (%g, %g) at angle %g crosses more than %d regions",
		ErrTrack, start.X, start.Y, angle, MAX_SEGMENTS)
	return nil, end, err
}
