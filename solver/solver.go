package solver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/track"
	"github.com/notargets/gomoc/utils"
)

var (
	ErrNotConfigured = errors.New("solver is not configured")
	ErrNotConverged  = errors.New("source iteration did not converge")
	ErrNoFission     = errors.New("geometry produces no fission source")
)

const FOUR_PI = 4 * math.Pi

// GeometryProvider is the flat source region view the solver needs
type GeometryProvider interface {
	NumRegions() int
	NumEnergyGroups() int
	RegionVolume(region int) float64
	RegionMaterial(region int) *material.Material
	Materials() []*material.Material
}

// TrackProvider is the segmented, connected track layout. Materials on the
// segments must be the ones the GeometryProvider reports.
type TrackProvider interface {
	NumTracks() int
	Track(i int) *track.Track
	NumPolar() int
	SinThetas() []float64
}

type sweepScratch struct {
	psi  []float64 // Angular flux along the track, [polar][group]
	exps []float64 // Segment attenuation factors, [polar][group]
	fsr  []float64 // Segment contribution to the region flux, [group]
	scat []float64 // Region scatter source, [group]
}

// Solver runs the MOC k-eigenvalue source iteration. Group arrays are padded
// to NumAlignedGroups, a multiple of the vector width, with inert groups.
type Solver struct {
	cfg    Config
	log    *slog.Logger
	geom   GeometryProvider
	tracks TrackProvider
	state  State

	NumRegions       int
	NumGroups        int
	NumAlignedGroups int
	NumPolar         int
	NumTracks        int
	NP               int // Worker count

	volumes    []float64
	materials  []*material.Material // By region
	sinThetas  []float64
	batches    [2][]int // Track indices with phi below and above pi/2
	scratch    []sweepScratch
	residuals  []float64 // Per worker partial sums
	trackLeaks []float64 // Leakage tallied by each track in the last sweep

	scalarFlux       RegionGroupArray
	fissionSources   RegionGroupArray // nu sigma_f phi by group
	sources          RegionGroupArray
	oldSources       RegionGroupArray
	ratios           RegionGroupArray
	boundaryFlux     TrackArray // Read during a sweep
	nextBoundaryFlux TrackArray // Written during a sweep
	locks            *LockTable
	exp              expEvaluator

	keff       float64
	residual   float64
	iterations int
}

func NewSolver(geom GeometryProvider, tracks TrackProvider, cfg Config) (s *Solver, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	cfg = cfg.withDefaults()
	s = &Solver{
		cfg: cfg,
		log: cfg.Logger,
	}
	if err = s.Configure(geom, tracks); err != nil {
		return nil, err
	}
	return
}

// Configure binds the solver to a geometry and track layout, reallocating
// every array. On failure the solver is left Unconfigured with nothing
// allocated.
func (s *Solver) Configure(geom GeometryProvider, tracks TrackProvider) (err error) {
	s.release()
	defer func() {
		if err != nil {
			s.release()
		}
	}()
	switch {
	case geom == nil || tracks == nil:
		return fmt.Errorf("%w: geometry and tracks are required", ErrConfig)
	case geom.NumRegions() < 1:
		return fmt.Errorf("%w: geometry has no flat source regions", ErrConfig)
	case geom.NumEnergyGroups() < 1:
		return fmt.Errorf("%w: geometry has no energy groups", ErrConfig)
	case tracks.NumTracks() < 1 || tracks.NumPolar() < 1:
		return fmt.Errorf("%w: %d tracks with %d polar angles", ErrConfig, tracks.NumTracks(), tracks.NumPolar())
	}
	var (
		R = geom.NumRegions()
		G = geom.NumEnergyGroups()
		P = tracks.NumPolar()
		T = tracks.NumTracks()
	)
	Gp, _ := utils.RoundUpToWidth(G, s.cfg.VectorWidth)
	s.geom, s.tracks = geom, tracks
	s.NumRegions, s.NumGroups, s.NumAlignedGroups, s.NumPolar, s.NumTracks = R, G, Gp, P, T

	for _, m := range geom.Materials() {
		if m.NumGroups() != G {
			return fmt.Errorf("%w: material %d has %d groups, geometry has %d", ErrConfig, m.ID(), m.NumGroups(), G)
		}
		if err = m.AlignData(s.cfg.VectorWidth, s.cfg.VectorAlignment); err != nil {
			return
		}
	}
	s.volumes = make([]float64, R)
	s.materials = make([]*material.Material, R)
	for r := 0; r < R; r++ {
		if s.materials[r] = geom.RegionMaterial(r); s.materials[r] == nil {
			return fmt.Errorf("%w: region %d has no material", ErrConfig, r)
		}
		if s.materials[r].NumAlignedGroups() != Gp {
			return fmt.Errorf("%w: region %d material %d is not among the geometry materials",
				ErrConfig, r, s.materials[r].ID())
		}
		s.volumes[r] = geom.RegionVolume(r)
	}
	s.sinThetas = append([]float64{}, tracks.SinThetas()...)
	for t := 0; t < T; t++ {
		tr := tracks.Track(t)
		for _, seg := range tr.Segments {
			if seg.Material == nil || seg.Material.NumAlignedGroups() != Gp {
				return fmt.Errorf("%w: track %d crosses region %d with a material the geometry does not report",
					ErrConfig, t, seg.Region)
			}
		}
		if tr.Phi < 0.5*math.Pi {
			s.batches[0] = append(s.batches[0], t)
		} else {
			s.batches[1] = append(s.batches[1], t)
		}
	}

	al := s.cfg.VectorAlignment
	if s.scalarFlux, err = NewRegionGroupArray("scalar flux", R, Gp, al); err != nil {
		return
	}
	if s.fissionSources, err = NewRegionGroupArray("fission source", R, Gp, al); err != nil {
		return
	}
	if s.sources, err = NewRegionGroupArray("source", R, Gp, al); err != nil {
		return
	}
	if s.oldSources, err = NewRegionGroupArray("old source", R, Gp, al); err != nil {
		return
	}
	if s.ratios, err = NewRegionGroupArray("source ratio", R, Gp, al); err != nil {
		return
	}
	if s.boundaryFlux, err = NewTrackArray("boundary flux", T, P, Gp, al); err != nil {
		return
	}
	if s.nextBoundaryFlux, err = NewTrackArray("next boundary flux", T, P, Gp, al); err != nil {
		return
	}
	s.NP = utils.ParallelDegree(s.cfg.NumThreads, math.MaxInt32)
	s.scratch = make([]sweepScratch, s.NP)
	for n := range s.scratch {
		sc := &s.scratch[n]
		if sc.psi, err = utils.AlignedFloat64s("angular flux", P*Gp, al); err != nil {
			return
		}
		if sc.exps, err = utils.AlignedFloat64s("exponentials", P*Gp, al); err != nil {
			return
		}
		if sc.fsr, err = utils.AlignedFloat64s("segment flux", Gp, al); err != nil {
			return
		}
		if sc.scat, err = utils.AlignedFloat64s("scatter source", Gp, al); err != nil {
			return
		}
	}
	s.residuals = make([]float64, s.NP)
	s.trackLeaks = make([]float64, T)
	s.locks = NewLockTable(R)
	if s.cfg.InterpolateExponentials {
		if s.exp, err = NewExpTable(s.sinThetas, s.cfg.ExpTableTolerance); err != nil {
			return
		}
	} else {
		s.exp = directExp{sinThetas: s.sinThetas}
	}
	s.state = Configured
	s.log.Info("solver configured",
		"regions", R, "groups", G, "aligned_groups", Gp, "polar", P, "tracks", T, "threads", s.NP,
		"interpolate_exponentials", s.cfg.InterpolateExponentials)
	return
}

func (s *Solver) release() {
	s.scalarFlux.Release()
	s.fissionSources.Release()
	s.sources.Release()
	s.oldSources.Release()
	s.ratios.Release()
	s.boundaryFlux.Release()
	s.nextBoundaryFlux.Release()
	s.geom, s.tracks = nil, nil
	s.volumes, s.materials, s.sinThetas = nil, nil, nil
	s.batches = [2][]int{}
	s.scratch, s.residuals, s.trackLeaks = nil, nil, nil
	s.locks, s.exp = nil, nil
	s.NumRegions, s.NumGroups, s.NumAlignedGroups, s.NumPolar, s.NumTracks, s.NP = 0, 0, 0, 0, 0, 0
	s.keff, s.residual, s.iterations = 0, 0, 0
	s.state = Unconfigured
}

// Close drops every array, the solver must be configured again before use
func (s *Solver) Close() { s.release() }

func (s *Solver) State() State      { return s.state }
func (s *Solver) Keff() float64     { return s.keff }
func (s *Solver) Residual() float64 { return s.residual }
func (s *Solver) Iterations() int   { return s.iterations }
func (s *Solver) Config() Config    { return s.cfg }

func (s *Solver) RegionVolume(r int) float64 { return s.volumes[r] }

// ScalarFlux is the normalized scalar flux of a physical group
func (s *Solver) ScalarFlux(r, g int) float64 { return s.scalarFlux.At(r, g) }

// Fluxes copies the physical groups of the scalar flux, [region][group]
func (s *Solver) Fluxes() (phi [][]float64) {
	phi = make([][]float64, s.NumRegions)
	for r := range phi {
		phi[r] = append([]float64{}, s.scalarFlux.Row(r)[:s.NumGroups]...)
	}
	return
}

// FissionSource is the nu-fission rate density of a physical group from the
// flux the last source was built from
func (s *Solver) FissionSource(r, g int) float64 { return s.fissionSources.At(r, g) }

// Source is the isotropic region source per steradian of a physical group
func (s *Solver) Source(r, g int) float64 { return s.sources.At(r, g) }

// Leakage is the total rate leaving through vacuum boundaries in the last sweep
func (s *Solver) Leakage() (leak float64) {
	for _, l := range s.trackLeaks {
		leak += l
	}
	return 0.5 * leak
}
