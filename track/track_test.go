package track

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/gomoc/geometry"
	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/quadrature"
	"github.com/notargets/gomoc/types"
)

func oneGroup(t *testing.T, id int) *material.Material {
	m, err := material.NewMaterial(id, material.CrossSections{
		SigmaA:   []float64{0.1},
		SigmaF:   []float64{0},
		NuSigmaF: []float64{0},
		Chi:      []float64{0},
		SigmaS:   mat.NewDense(1, 1, []float64{0.2}),
	})
	require.NoError(t, err)
	return m
}

// boxGeometry is a circle of radius R (region 0) inside a box of half width
// one (region 1) with the given boundary type on all four sides
func boxGeometry(t *testing.T, R float64, bc types.BoundaryType) *geometry.Geometry {
	g := geometry.NewGeometry()
	ids := g.IDs()
	require.NoError(t, g.AddMaterial(oneGroup(t, 1)))
	require.NoError(t, g.AddMaterial(oneGroup(t, 2)))
	circle, err := geometry.NewCircle(ids, 0, 0, R, 0)
	require.NoError(t, err)
	fuel, err := geometry.NewMaterialCell(ids, 1, 0, 1)
	require.NoError(t, err)
	require.NoError(t, fuel.AddBoundary(circle, -1))
	mod, err := geometry.NewMaterialCell(ids, 2, 0, 2)
	require.NoError(t, err)
	require.NoError(t, mod.AddBoundary(circle, +1))
	var planes []*geometry.Surface
	for _, x := range []float64{-1, 1} {
		s, err := geometry.NewXPlane(ids, x, 0)
		require.NoError(t, err)
		planes = append(planes, s)
	}
	for _, y := range []float64{-1, 1} {
		s, err := geometry.NewYPlane(ids, y, 0)
		require.NoError(t, err)
		planes = append(planes, s)
	}
	for i, s := range planes {
		s.SetBoundaryType(bc)
		hs := +1
		if i%2 == 1 {
			hs = -1
		}
		require.NoError(t, fuel.AddBoundary(s, hs))
		require.NoError(t, mod.AddBoundary(s, hs))
	}
	require.NoError(t, g.AddCell(fuel))
	require.NoError(t, g.AddCell(mod))
	require.NoError(t, g.InitializeFlatSourceRegions())
	return g
}

// striped reports a boundary every half unit in x but a single region
type striped struct{ m *material.Material }

func (s striped) Locate(p r2.Vec) (int, []*geometry.Cell, error) {
	if math.Abs(p.X) > 1 || math.Abs(p.Y) > 1 {
		return -1, nil, geometry.ErrNotLocated
	}
	return 0, nil, nil
}

func (s striped) DistanceToBoundary(_ []*geometry.Cell, p r2.Vec, angle float64) (float64, r2.Vec) {
	next := math.Floor(p.X/0.5)*0.5 + 0.5
	d := (next - p.X) / math.Cos(angle)
	return d, r2.Vec{X: next, Y: p.Y + d*math.Sin(angle)}
}

func (s striped) RegionMaterial(int) *material.Material { return s.m }

func TestSegmentize(t *testing.T) {
	{ // Test a vertical ray through the circle
		g := boxGeometry(t, 0.5, types.BC_Vacuum)
		segs, end, err := Segmentize(g, r2.Vec{X: 0, Y: -1}, math.Pi/2)
		require.NoError(t, err)
		require.Equal(t, 3, len(segs))
		assert.Equal(t, []int{1, 0, 1}, []int{segs[0].Region, segs[1].Region, segs[2].Region})
		assert.InDelta(t, 0.5, segs[0].Length, 1.e-9)
		assert.InDelta(t, 1.0, segs[1].Length, 1.e-9)
		assert.InDelta(t, 0.5, segs[2].Length, 1.e-9)
		assert.Equal(t, 1, segs[1].Material.ID())
		assert.Equal(t, 2, segs[0].Material.ID())
		assert.InDelta(t, 0., end.X, 1.e-12)
		assert.InDelta(t, 1., end.Y, 1.e-9)
	}
	{ // Test a diagonal ray keeps its total length
		g := boxGeometry(t, 0.5, types.BC_Vacuum)
		segs, end, err := Segmentize(g, r2.Vec{X: -1, Y: -1}, math.Pi/4)
		require.NoError(t, err)
		var sum float64
		for _, s := range segs {
			sum += s.Length
		}
		assert.InDelta(t, 2*math.Sqrt2, sum, 1.e-8)
		assert.InDelta(t, 1., end.X, 1.e-8)
		assert.InDelta(t, 1., end.Y, 1.e-8)
		assert.Equal(t, 3, len(segs))
		assert.InDelta(t, 1., segs[1].Length, 1.e-9)
	}
	{ // Test crossings inside one region merge
		segs, _, err := Segmentize(striped{m: oneGroup(t, 1)}, r2.Vec{X: -1, Y: 0}, math.Pi/8)
		require.NoError(t, err)
		require.Equal(t, 1, len(segs))
		assert.InDelta(t, 2/math.Cos(math.Pi/8), segs[0].Length, 1.e-8)
	}
	{ // Test a start outside the geometry is reported
		g := boxGeometry(t, 0.5, types.BC_Vacuum)
		_, _, err := Segmentize(g, r2.Vec{X: -2, Y: 0}, math.Pi/4)
		assert.True(t, errors.Is(err, geometry.ErrNotLocated))
	}
}

func TestLaydown(t *testing.T) {
	polar, err := quadrature.NewTabuchiYamamoto(2)
	require.NoError(t, err)
	{ // Test coverage, weights and connections
		R := 0.5
		g := boxGeometry(t, R, types.BC_Vacuum)
		ld := Laydown{NumAzim: 8, Spacing: 0.01, Polar: polar, NumThreads: 4}
		ts, err := ld.Generate(g)
		require.NoError(t, err)
		require.NoError(t, ts.Validate(g.NumRegions()))
		assert.Equal(t, 2, ts.NumPolar())
		assert.Equal(t, 8, ts.NumAzim)
		assert.True(t, ts.NumTracks() > 8*200)
		for i, tr := range ts.Tracks {
			assert.Equal(t, i, tr.UID)
			assert.Equal(t, i, tr.TrackIn)
			assert.Equal(t, i, tr.TrackOut)
			assert.True(t, tr.ReflOut)
			assert.False(t, tr.ReflIn)
			assert.Equal(t, types.BC_Vacuum, tr.BCIn)
			assert.Equal(t, types.BC_Vacuum, tr.BCOut)
			assert.InDelta(t, r2.Norm(r2.Sub(tr.End, tr.Start)), tr.Length(), 1.e-7)
			assert.True(t, tr.Phi > 0 && tr.Phi < math.Pi)
		}
		volumes, err := EstimateVolumes(ts, g.NumRegions())
		require.NoError(t, err)
		assert.InDelta(t, 4., floats.Sum(volumes), 1.e-3)
		assert.InDelta(t, math.Pi*R*R, volumes[0], 5.e-3)

		// Per unit volume weight a track carries 4pi times the polar sine moment
		var multiples float64
		for p := 0; p < polar.NumPolar(); p++ {
			multiples += polar.Multiple(p)
		}
		for _, tr := range ts.Tracks {
			assert.InDelta(t, 4*math.Pi*multiples, floats.Sum(tr.Weights)/tr.VolumeWeight, 1.e-12)
		}
	}
	{ // Test reflective boundaries are tagged
		g := boxGeometry(t, 0.5, types.BC_Reflective)
		ts, err := Laydown{NumAzim: 4, Spacing: 0.1, Polar: polar}.Generate(g)
		require.NoError(t, err)
		for _, tr := range ts.Tracks {
			assert.Equal(t, types.BC_Reflective, tr.BCOut)
		}
	}
	{ // Test invalid requests
		g := boxGeometry(t, 0.5, types.BC_Vacuum)
		_, err := Laydown{NumAzim: 0, Spacing: 0.1, Polar: polar}.Generate(g)
		assert.True(t, errors.Is(err, ErrTrack))
		_, err = Laydown{NumAzim: 2, Spacing: 0, Polar: polar}.Generate(g)
		assert.True(t, errors.Is(err, ErrTrack))
		_, err = Laydown{NumAzim: 2, Spacing: 0.1}.Generate(g)
		assert.True(t, errors.Is(err, ErrTrack))
	}
	{ // Test validation catches bad data
		g := boxGeometry(t, 0.5, types.BC_Vacuum)
		ts, err := Laydown{NumAzim: 2, Spacing: 0.5, Polar: polar}.Generate(g)
		require.NoError(t, err)
		ts.Tracks[0].TrackOut = ts.NumTracks()
		assert.True(t, errors.Is(ts.Validate(g.NumRegions()), ErrTrack))
		ts.Tracks[0].TrackOut = 0
		ts.Tracks[0].Segments[0].Region = 7
		assert.True(t, errors.Is(ts.Validate(g.NumRegions()), ErrTrack))
		_, err = EstimateVolumes(ts, g.NumRegions())
		assert.True(t, errors.Is(err, ErrTrack))
	}
}
