package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/gomoc/quadrature"
	"github.com/notargets/gomoc/types"
	"github.com/notargets/gomoc/utils"
)

// BoxTracer is a Tracer with a finite rectangular outer boundary
type BoxTracer interface {
	Tracer
	Extents() (xmin, xmax, ymin, ymax float64)
	BoundaryTypeAt(p r2.Vec, tol float64) types.BoundaryType
}

// Laydown covers a rectangular geometry with parallel tracks: NumAzim
// azimuthal angles (i+1/2)pi/NumAzim, each with tracks about Spacing apart.
// Every track is closed on itself, the flux leaving either end re-enters the
// same track in the opposite direction. That is exact for vacuum boundaries
// and for infinite homogeneous media, cyclic reflective laydowns are left to
// an external generator.
type Laydown struct {
	NumAzim    int
	Spacing    float64
	Polar      *quadrature.Polar
	NumThreads int
}

const boundaryTol = 1.e-8

func (ld Laydown) Generate(g BoxTracer) (ts *TrackSet, err error) {
	var (
		xmin, xmax, ymin, ymax = g.Extents()
	)
	switch {
	case ld.NumAzim < 1:
		err = fmt.Errorf("%w: %d azimuthal angles", ErrTrack, ld.NumAzim)
	case !(ld.Spacing > 0):
		err = fmt.Errorf("%w: track spacing %g", ErrTrack, ld.Spacing)
	case ld.Polar == nil:
		err = fmt.Errorf("%w: no polar quadrature", ErrTrack)
	case math.IsInf(xmin, 0) || math.IsInf(xmax, 0) || math.IsInf(ymin, 0) || math.IsInf(ymax, 0):
		err = fmt.Errorf("%w: geometry is unbounded, x = [%g, %g], y = [%g, %g]", ErrTrack, xmin, xmax, ymin, ymax)
	}
	if err != nil {
		return
	}
	var (
		center  = r2.Vec{X: 0.5 * (xmin + xmax), Y: 0.5 * (ymin + ymax)}
		hx, hy  = 0.5 * (xmax - xmin), 0.5 * (ymax - ymin)
		wAzim   = 1. / float64(ld.NumAzim)
		np      = ld.Polar.NumPolar()
		sinThet = ld.Polar.SinThetas()
	)
	ts = &TrackSet{Polar: ld.Polar, NumAzim: ld.NumAzim}
	for i := 0; i < ld.NumAzim; i++ {
		var (
			phi       = (float64(i) + 0.5) * math.Pi / float64(ld.NumAzim)
			dir       = r2.Vec{X: math.Cos(phi), Y: math.Sin(phi)}
			normal    = r2.Vec{X: -dir.Y, Y: dir.X}
			halfWidth = hx*math.Abs(normal.X) + hy*math.Abs(normal.Y) // Box half width along the normal
			numTracks = int(math.Ceil(2 * halfWidth / ld.Spacing))
			spacing   = 2 * halfWidth / float64(numTracks)
		)
		for j := 0; j < numTracks; j++ {
			s := -halfWidth + (float64(j)+0.5)*spacing
			start, end, ok := clipToBox(r2.Add(center, r2.Scale(s, normal)), dir, xmin, xmax, ymin, ymax)
			if !ok {
				continue
			}
			uid := len(ts.Tracks)
			t := &Track{
				UID:          uid,
				Phi:          phi,
				AzimIndex:    i,
				Start:        start,
				End:          end,
				Weights:      make([]float64, np),
				VolumeWeight: wAzim * spacing,
				TrackIn:      uid,
				TrackOut:     uid,
				ReflIn:       false,
				ReflOut:      true,
				BCIn:         g.BoundaryTypeAt(start, boundaryTol),
				BCOut:        g.BoundaryTypeAt(end, boundaryTol),
			}
			for p := 0; p < np; p++ {
				t.Weights[p] = 4 * math.Pi * wAzim * spacing * ld.Polar.Weight(p) * sinThet[p]
			}
			ts.Tracks = append(ts.Tracks, t)
		}
	}
	var (
		nt   = len(ts.Tracks)
		NP   = utils.ParallelDegree(ld.NumThreads, nt)
		errs = make([]error, NP)
	)
	utils.ParallelFor(NP, nt, func(n, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			t := ts.Tracks[k]
			var end r2.Vec
			if t.Segments, end, errs[n] = Segmentize(g, t.Start, t.Phi); errs[n] != nil {
				return
			}
			t.End = end
		}
	})
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return
}

// clipToBox intersects the line through p along dir with the box
func clipToBox(p, dir r2.Vec, xmin, xmax, ymin, ymax float64) (start, end r2.Vec, ok bool) {
	var (
		tmin, tmax = math.Inf(-1), math.Inf(1)
	)
	slab := func(p0, d, lo, hi float64) bool {
		if math.Abs(d) < 1.e-15 {
			return p0 >= lo && p0 <= hi
		}
		t1, t2 := (lo-p0)/d, (hi-p0)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = math.Max(tmin, t1), math.Min(tmax, t2)
		return true
	}
	if !slab(p.X, dir.X, xmin, xmax) || !slab(p.Y, dir.Y, ymin, ymax) || !(tmax > tmin) {
		return
	}
	start = r2.Add(p, r2.Scale(tmin, dir))
	end = r2.Add(p, r2.Scale(tmax, dir))
	ok = true
	return
}
