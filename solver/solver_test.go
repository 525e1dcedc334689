package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomoc/geometry"
	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/quadrature"
	"github.com/notargets/gomoc/track"
	"github.com/notargets/gomoc/types"
	"github.com/notargets/gomoc/utils"
)

func oneGroupMaterial(t *testing.T, id int, sigA, nuSigF, sigS float64) *material.Material {
	m, err := material.NewMaterial(id, material.CrossSections{
		SigmaA:   []float64{sigA},
		SigmaF:   []float64{nuSigF / 2.4},
		NuSigmaF: []float64{nuSigF},
		Chi:      []float64{1},
		SigmaS:   mat.NewDense(1, 1, []float64{sigS}),
	})
	require.NoError(t, err)
	return m
}

func twoGroupMaterials(t *testing.T) (fuel, mod *material.Material) {
	var err error
	fuel, err = material.NewMaterial(1, material.CrossSections{
		Name:     "fuel",
		SigmaA:   []float64{0.0100, 0.1000},
		SigmaF:   []float64{0.0030, 0.0700},
		NuSigmaF: []float64{0.0075, 0.1700},
		Chi:      []float64{1, 0},
		SigmaS:   mat.NewDense(2, 2, []float64{0.50, 0.00, 0.02, 1.00}),
	})
	require.NoError(t, err)
	mod, err = material.NewMaterial(2, material.CrossSections{
		Name:     "moderator",
		SigmaA:   []float64{0.0005, 0.0200},
		SigmaF:   []float64{0, 0},
		NuSigmaF: []float64{0, 0},
		Chi:      []float64{0, 0},
		SigmaS:   mat.NewDense(2, 2, []float64{0.60, 0.00, 0.05, 1.50}),
	})
	require.NoError(t, err)
	return
}

// boxProblem builds an optional circle of radius R, region 0, inside a box of
// half width L with bc on all four sides, lays down tracks and sets volumes
func boxProblem(t *testing.T, L, R float64, bc types.BoundaryType, inner, outer *material.Material) (*geometry.Geometry, *track.TrackSet) {
	g := geometry.NewGeometry()
	ids := g.IDs()
	require.NoError(t, g.AddMaterial(outer))
	var (
		cells  []*geometry.Cell
		circle *geometry.Surface
		err    error
	)
	if R > 0 {
		require.NoError(t, g.AddMaterial(inner))
		circle, err = geometry.NewCircle(ids, 0, 0, R, 0)
		require.NoError(t, err)
		in, err := geometry.NewMaterialCell(ids, 1, 0, inner.ID())
		require.NoError(t, err)
		require.NoError(t, in.AddBoundary(circle, -1))
		cells = append(cells, in)
	}
	out, err := geometry.NewMaterialCell(ids, 2, 0, outer.ID())
	require.NoError(t, err)
	if circle != nil {
		require.NoError(t, out.AddBoundary(circle, +1))
	}
	cells = append(cells, out)
	for i, x := range []float64{-L, L, -L, L} {
		var s *geometry.Surface
		if i < 2 {
			s, err = geometry.NewXPlane(ids, x, 0)
		} else {
			s, err = geometry.NewYPlane(ids, x, 0)
		}
		require.NoError(t, err)
		s.SetBoundaryType(bc)
		hs := +1
		if i%2 == 1 {
			hs = -1
		}
		for _, c := range cells {
			require.NoError(t, c.AddBoundary(s, hs))
		}
	}
	for _, c := range cells {
		require.NoError(t, g.AddCell(c))
	}
	require.NoError(t, g.InitializeFlatSourceRegions())
	polar, err := quadrature.NewTabuchiYamamoto(3)
	require.NoError(t, err)
	ts, err := track.Laydown{NumAzim: 8, Spacing: 0.05, Polar: polar, NumThreads: 2}.Generate(g)
	require.NoError(t, err)
	vols, err := track.EstimateVolumes(ts, g.NumRegions())
	require.NoError(t, err)
	require.NoError(t, g.SetRegionVolumes(vols))
	return g, ts
}

func TestConfig(t *testing.T) {
	{ // Test defaults pass and fill in
		assert.NoError(t, Config{}.Validate())
		c := Config{}.withDefaults()
		assert.Equal(t, DefaultVectorWidth, c.VectorWidth)
		assert.Equal(t, 64, c.VectorAlignment)
		assert.Equal(t, DefaultTolerance, c.Tolerance)
		assert.Equal(t, DefaultMaxIterations, c.MaxIterations)
		assert.NotNil(t, c.Logger)
		assert.NoError(t, DefaultConfig().Validate())
	}
	{ // Test invalid settings
		for _, c := range []Config{
			{NumThreads: -1},
			{VectorWidth: -4},
			{VectorAlignment: 24},
			{Tolerance: -1},
			{MaxIterations: -1},
			{ExpTableTolerance: 2},
		} {
			assert.True(t, errors.Is(c.Validate(), ErrConfig), "%+v", c)
		}
	}
}

func TestArrays(t *testing.T) {
	{ // Test region major layout and alignment
		a, err := NewRegionGroupArray("test", 3, 8, 64)
		require.NoError(t, err)
		assert.True(t, utils.IsAligned(a.Data, 64))
		a.Set(2, 5, 7)
		assert.Equal(t, 7., a.Data[2*8+5])
		assert.Equal(t, 7., a.Row(2)[5])
		assert.Equal(t, 8, len(a.Row(1)))
		a.Fill(1)
		assert.Equal(t, 1., a.At(0, 0))
		a.Release()
		assert.Nil(t, a.Data)
	}
	{ // Test boundary flux slots
		b, err := NewTrackArray("test", 4, 3, 2, 64)
		require.NoError(t, err)
		assert.Equal(t, 4*2*3*2, len(b.Data))
		b.Slot(2, 1)[3] = 5
		assert.Equal(t, 5., b.Data[b.Index(2, 1, 1, 1)])
	}
	{ // Test the lock table
		lt := NewLockTable(3)
		assert.Equal(t, 3, lt.Len())
		lt.Lock(1)
		lt.Unlock(1)
	}
}

func TestExponentials(t *testing.T) {
	polar, err := quadrature.NewTabuchiYamamoto(3)
	require.NoError(t, err)
	sins := polar.SinThetas()
	tol := 1.e-6
	et, err := NewExpTable(sins, tol)
	require.NoError(t, err)
	assert.True(t, et.NumNodes() > 100)
	{ // Test the table error bound against the exact form
		direct := directExp{sinThetas: sins}
		sigT := []float64{0, 0.01, 0.3, 1.7, 25}
		var (
			exact  = make([]float64, len(sins)*len(sigT))
			interp = make([]float64, len(sins)*len(sigT))
		)
		for _, length := range []float64{1.e-4, 0.013, 0.5, 2.2, 9} {
			direct.Compute(exact, sigT, length)
			et.Compute(interp, sigT, length)
			for i := range exact {
				assert.InDelta(t, exact[i], interp[i], tol)
			}
		}
		assert.Equal(t, 0., et.Eval(0, 0))
		assert.InDelta(t, 1., et.Eval(100, 2), 1.e-12)
	}
	{ // Test invalid tables
		_, err := NewExpTable(nil, tol)
		assert.True(t, errors.Is(err, ErrConfig))
		_, err = NewExpTable(sins, 0)
		assert.True(t, errors.Is(err, ErrConfig))
		_, err = NewExpTable([]float64{1.5}, tol)
		assert.True(t, errors.Is(err, ErrConfig))
	}
}

func TestSolverInfiniteMedium(t *testing.T) {
	ctx := context.Background()
	{ // Test a critical reflected medium converges to k = 1
		m := oneGroupMaterial(t, 1, 0.1, 0.1, 0.3)
		g, ts := boxProblem(t, 1, 0, types.BC_Reflective, nil, m)
		s, err := NewSolver(g, ts, Config{NumThreads: 2})
		require.NoError(t, err)
		assert.Equal(t, Configured, s.State())
		res, err := s.Converge(ctx)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.Equal(t, Converged, s.State())
		assert.InDelta(t, 1., res.Keff, 1.e-6)
		assert.InDelta(t, 0., s.Leakage(), 1.e-12)
		assert.True(t, res.Iterations >= 3)
		assert.True(t, s.FissionSource(0, 0) > 0)
	}
	{ // Test k is nu sigma_f over sigma_a
		m := oneGroupMaterial(t, 1, 0.069389522, 0.0994076580, 0.383259177)
		g, ts := boxProblem(t, 0.63, 0, types.BC_Reflective, nil, m)
		s, err := NewSolver(g, ts, Config{})
		require.NoError(t, err)
		res, err := s.Converge(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.0994076580/0.069389522, res.Keff, 1.e-6)
		assert.InDelta(t, 1.43260, res.Keff, 1.e-4)
	}
	{ // Test the iteration cap
		m := oneGroupMaterial(t, 1, 0.1, 0.1, 0.3)
		g, ts := boxProblem(t, 1, 0, types.BC_Reflective, nil, m)
		s, err := NewSolver(g, ts, Config{MaxIterations: 1})
		require.NoError(t, err)
		res, err := s.Converge(ctx)
		assert.True(t, errors.Is(err, ErrNotConverged))
		require.NotNil(t, res)
		assert.False(t, res.Converged)
		assert.Equal(t, 1, res.Iterations)
		assert.Equal(t, MaxIterationsReached, res.State)
		assert.True(t, res.Keff > 0)
	}
	{ // Test a cancelled context stops the iteration
		m := oneGroupMaterial(t, 1, 0.1, 0.1, 0.3)
		g, ts := boxProblem(t, 1, 0, types.BC_Reflective, nil, m)
		s, err := NewSolver(g, ts, Config{})
		require.NoError(t, err)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = s.Converge(cctx)
		assert.True(t, errors.Is(err, context.Canceled))
	}
	{ // Test a geometry without fission is rejected
		m := oneGroupMaterial(t, 1, 0.1, 0, 0.3)
		g, ts := boxProblem(t, 1, 0, types.BC_Reflective, nil, m)
		s, err := NewSolver(g, ts, Config{})
		require.NoError(t, err)
		_, err = s.Converge(ctx)
		assert.True(t, errors.Is(err, ErrNoFission))
	}
}

func TestSolverPinCell(t *testing.T) {
	ctx := context.Background()
	solve := func(cfg Config) *Solver {
		fuel, mod := twoGroupMaterials(t)
		g, ts := boxProblem(t, 1, 0.5, types.BC_Vacuum, fuel, mod)
		s, err := NewSolver(g, ts, cfg)
		require.NoError(t, err)
		res, err := s.Converge(ctx)
		require.NoError(t, err)
		require.True(t, res.Converged)
		return s
	}
	s := solve(Config{NumThreads: 1, Tolerance: 1.e-7})
	{ // Test the balance of the converged state
		assert.Equal(t, 2, s.NumRegions)
		assert.Equal(t, 2, s.NumGroups)
		assert.Equal(t, 8, s.NumAlignedGroups)
		assert.True(t, s.Keff() > 0 && s.Keff() < 0.17/0.1)
		assert.True(t, s.Leakage() > 0)
		phi := s.Fluxes()
		require.Equal(t, 2, len(phi))
		for r := range phi {
			require.Equal(t, 2, len(phi[r]))
			for g := range phi[r] {
				assert.True(t, phi[r][g] > 0, "region %d group %d", r, g)
			}
			for g := 2; g < s.NumAlignedGroups; g++ {
				assert.Equal(t, 0., s.scalarFlux.At(r, g))
			}
		}
		var absorption float64
		for r, m := range s.materials {
			absorption += s.RegionVolume(r) * floats.Dot(m.SigmaA, s.scalarFlux.Row(r))
		}
		assert.InDelta(t, s.fissionRate()/(absorption+s.Leakage()), s.Keff(), 1.e-12)
	}
	{ // Test padding leaves the answer unchanged
		w1 := solve(Config{NumThreads: 1, Tolerance: 1.e-7, VectorWidth: 1})
		assert.Equal(t, 2, w1.NumAlignedGroups)
		assert.InDelta(t, s.Keff(), w1.Keff(), 1.e-12)
		assert.Equal(t, s.Iterations(), w1.Iterations())
		for r := 0; r < 2; r++ {
			for g := 0; g < 2; g++ {
				assert.InDelta(t, s.ScalarFlux(r, g), w1.ScalarFlux(r, g), 1.e-12*s.ScalarFlux(r, g))
			}
		}
	}
	{ // Test threaded sweeps and interpolated exponentials agree
		par := solve(Config{NumThreads: 4, Tolerance: 1.e-7})
		assert.InDelta(t, s.Keff(), par.Keff(), 1.e-6)
		tab := solve(Config{NumThreads: 4, Tolerance: 1.e-7, InterpolateExponentials: true, ExpTableTolerance: 1.e-7})
		assert.InDelta(t, s.Keff(), tab.Keff(), 1.e-5)
	}
}

func TestSolverNormalize(t *testing.T) {
	fuel, mod := twoGroupMaterials(t)
	g, ts := boxProblem(t, 1, 0.5, types.BC_Vacuum, fuel, mod)
	s, err := NewSolver(g, ts, Config{})
	require.NoError(t, err)
	s.initializeFluxes()
	require.NoError(t, s.normalizeFluxes())
	assert.InDelta(t, 1., s.fissionRate(), 1.e-12)
	phi := s.ScalarFlux(1, 0)
	require.NoError(t, s.normalizeFluxes())
	assert.InDelta(t, 1., s.fissionRate(), 1.e-12)
	assert.InDelta(t, phi, s.ScalarFlux(1, 0), 1.e-12)
	{ // Test a flux of zero cannot be normalized
		s.scalarFlux.Fill(0)
		assert.True(t, errors.Is(s.normalizeFluxes(), ErrNoFission))
	}
}

type hugeTracks struct{}

func (hugeTracks) NumTracks() int         { return 1 }
func (hugeTracks) Track(int) *track.Track { return &track.Track{Phi: 0.3} }
func (hugeTracks) NumPolar() int          { return 1 << 56 }
func (hugeTracks) SinThetas() []float64   { return nil }

func TestSolverLifecycle(t *testing.T) {
	ctx := context.Background()
	m := oneGroupMaterial(t, 1, 0.1, 0.1, 0.3)
	g, ts := boxProblem(t, 1, 0, types.BC_Reflective, nil, m)
	{ // Test allocation failure leaves nothing behind
		s, err := NewSolver(g, ts, Config{VectorWidth: 1})
		require.NoError(t, err)
		err = s.Configure(g, hugeTracks{})
		assert.True(t, errors.Is(err, utils.ErrAllocation))
		assert.Equal(t, Unconfigured, s.State())
		assert.Nil(t, s.scalarFlux.Data)
		assert.Equal(t, 0, s.NumRegions)
		_, err = s.Converge(ctx)
		assert.True(t, errors.Is(err, ErrNotConfigured))

		_, err = NewSolver(g, hugeTracks{}, Config{VectorWidth: 1})
		assert.True(t, errors.Is(err, utils.ErrAllocation))
	}
	{ // Test reconfiguring and closing
		s, err := NewSolver(g, ts, Config{})
		require.NoError(t, err)
		require.NoError(t, s.Configure(g, ts))
		_, err = s.Converge(ctx)
		require.NoError(t, err)
		s.Close()
		assert.Equal(t, Unconfigured, s.State())
		_, err = s.Converge(ctx)
		assert.True(t, errors.Is(err, ErrNotConfigured))
	}
	{ // Test missing inputs
		_, err := NewSolver(nil, ts, Config{})
		assert.True(t, errors.Is(err, ErrConfig))
		_, err = NewSolver(g, ts, Config{VectorAlignment: 3})
		assert.True(t, errors.Is(err, ErrConfig))
	}
	{ // Test state names
		assert.Equal(t, "Sweeping", Sweeping.String())
		assert.True(t, Converged.Done())
		assert.False(t, ComputingSource.Done())
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics("test", reg)
	require.NoError(t, err)
	m := oneGroupMaterial(t, 1, 0.1, 0.12, 0.3)
	g, ts := boxProblem(t, 1, 0, types.BC_Reflective, nil, m)
	s, err := NewSolver(g, ts, Config{Metrics: metrics})
	require.NoError(t, err)
	res, err := s.Converge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(res.Iterations), testutil.ToFloat64(metrics.Iterations))
	assert.InDelta(t, res.Keff, testutil.ToFloat64(metrics.Keff), 1.e-15)
	assert.InDelta(t, 1.2, testutil.ToFloat64(metrics.Keff), 1.e-6)
	assert.Equal(t, 1., testutil.ToFloat64(metrics.Solves.WithLabelValues(Converged.String())))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.SweepDuration))
	{ // Test duplicate registration fails cleanly
		_, err := NewMetrics("test", reg)
		assert.True(t, errors.Is(err, ErrMetrics))
		metrics.Unregister()
		again, err := NewMetrics("test", reg)
		require.NoError(t, err)
		again.Unregister()
	}
	{ // Test nil metrics are inert
		var none *Metrics
		none.observeIteration(1, 1, 0)
		none.observeSolve(Converged)
		none.Unregister()
	}
	assert.False(t, math.IsNaN(res.Residual))
}
