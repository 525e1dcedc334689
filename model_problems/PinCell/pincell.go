package PinCell

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomoc/InputParameters"
	"github.com/notargets/gomoc/geometry"
	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/quadrature"
	"github.com/notargets/gomoc/solver"
	"github.com/notargets/gomoc/track"
	"github.com/notargets/gomoc/types"
)

/*
A square pin cell, centered on the origin:

			+-----------------------+  Y = +Pitch/2
			|   moderator sectors   |
			|        .-----.        |
			|      /  fuel   \      |
			|     |  rings x  |     |
			|      \ sectors /      |
			|        '-----'        |
			|                       |
			+-----------------------+  Y = -Pitch/2
		X = -Pitch/2            X = +Pitch/2

Universe 1 holds the fuel cell (inside the circle) and the moderator cell
(outside it). The root universe is a single FILL cell bounded by the four box
planes, each carrying the boundary condition BC. Using the same material for
fuel and moderator gives the homogeneous benchmark.
*/
type PinCell struct {
	Pitch, FuelRadius float64
	FuelRings         int
	FuelSectors       int
	ModeratorSectors  int
	BC                types.BoundaryType
	Fuel, Moderator   *material.Material
	Logger            *slog.Logger
}

const (
	pinUniverse = 1
	fuelCellID  = 1
	modCellID   = 2
	rootCellID  = 3
)

// HomogeneousBenchmark is the one group infinite medium with
// k = nu sigma_f / sigma_a = 1.43260...
func HomogeneousBenchmark() (pc *PinCell, err error) {
	var m *material.Material
	if m, err = material.NewMaterial(1, material.CrossSections{
		Name:     "infinite medium",
		SigmaT:   []float64{0.452648699},
		SigmaA:   []float64{0.069389522},
		SigmaF:   []float64{0.0414198575},
		NuSigmaF: []float64{0.0994076580},
		Chi:      []float64{1.0},
		SigmaS:   mat.NewDense(1, 1, []float64{0.383259177}),
	}); err != nil {
		return
	}
	pc = &PinCell{
		Pitch:       200,
		FuelRadius:  10,
		FuelRings:   2,
		FuelSectors: 4,
		BC:          types.BC_Reflective,
		Fuel:        m,
		Moderator:   m,
	}
	return
}

func (pc *PinCell) Validate() (err error) {
	switch {
	case !(pc.Pitch > 0):
		err = fmt.Errorf("pitch %g must be positive", pc.Pitch)
	case !(pc.FuelRadius > 0) || 2*pc.FuelRadius >= pc.Pitch:
		err = fmt.Errorf("fuel radius %g must be positive and inside the pitch %g", pc.FuelRadius, pc.Pitch)
	case pc.Fuel == nil || pc.Moderator == nil:
		err = fmt.Errorf("fuel and moderator materials are required")
	case pc.BC == types.BC_None:
		err = fmt.Errorf("outer boundary needs a vacuum or reflective condition")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", geometry.ErrGeometry, err)
	}
	return
}

// BuildGeometry assembles the surfaces and cells and numbers the flat source
// regions. Region volumes are left at zero.
func (pc *PinCell) BuildGeometry() (g *geometry.Geometry, err error) {
	if err = pc.Validate(); err != nil {
		return
	}
	g = geometry.NewGeometry()
	ids := g.IDs()
	if err = g.AddMaterial(pc.Fuel); err != nil {
		return nil, err
	}
	if pc.Moderator != pc.Fuel {
		if err = g.AddMaterial(pc.Moderator); err != nil {
			return nil, err
		}
	}
	var (
		circle     *geometry.Surface
		fuel, mod  *geometry.Cell
		root       *geometry.Cell
		half       = 0.5 * pc.Pitch
		boxPlanes  []*geometry.Surface
		halfspaces = []int{+1, -1, +1, -1}
	)
	if circle, err = geometry.NewCircle(ids, 0, 0, pc.FuelRadius, 0); err != nil {
		return nil, err
	}
	if fuel, err = geometry.NewMaterialCell(ids, fuelCellID, pinUniverse, pc.Fuel.ID()); err != nil {
		return nil, err
	}
	if mod, err = geometry.NewMaterialCell(ids, modCellID, pinUniverse, pc.Moderator.ID()); err != nil {
		return nil, err
	}
	if root, err = geometry.NewFillCell(ids, rootCellID, 0, pinUniverse); err != nil {
		return nil, err
	}
	if err = fuel.AddBoundary(circle, -1); err != nil {
		return nil, err
	}
	if err = mod.AddBoundary(circle, +1); err != nil {
		return nil, err
	}
	if err = fuel.SetNumRings(pc.FuelRings); err != nil {
		return nil, err
	}
	if err = fuel.SetNumSectors(pc.FuelSectors); err != nil {
		return nil, err
	}
	if err = mod.SetNumSectors(pc.ModeratorSectors); err != nil {
		return nil, err
	}
	for _, pos := range []float64{-half, half} {
		var s *geometry.Surface
		if s, err = geometry.NewXPlane(ids, pos, 0); err != nil {
			return nil, err
		}
		boxPlanes = append(boxPlanes, s)
	}
	for _, pos := range []float64{-half, half} {
		var s *geometry.Surface
		if s, err = geometry.NewYPlane(ids, pos, 0); err != nil {
			return nil, err
		}
		boxPlanes = append(boxPlanes, s)
	}
	for i, s := range boxPlanes {
		s.SetBoundaryType(pc.BC)
		if err = root.AddBoundary(s, halfspaces[i]); err != nil {
			return nil, err
		}
	}
	for _, c := range []*geometry.Cell{fuel, mod, root} {
		if err = g.AddCell(c); err != nil {
			return nil, err
		}
	}
	if err = g.InitializeFlatSourceRegions(); err != nil {
		return nil, err
	}
	return
}

// Problem is a pin cell geometry with its track layout and estimated volumes
type Problem struct {
	Geometry *geometry.Geometry
	Tracks   *track.TrackSet
}

// Build lays down tracks over the pin cell and sets each region volume from
// the track estimate
func (pc *PinCell) Build(ld track.Laydown) (p *Problem, err error) {
	var (
		g       *geometry.Geometry
		ts      *track.TrackSet
		volumes []float64
	)
	if g, err = pc.BuildGeometry(); err != nil {
		return
	}
	if ld.Polar == nil {
		if ld.Polar, err = quadrature.NewTabuchiYamamoto(3); err != nil {
			return
		}
	}
	if ts, err = ld.Generate(g); err != nil {
		return
	}
	if volumes, err = track.EstimateVolumes(ts, g.NumRegions()); err != nil {
		return
	}
	if err = g.SetRegionVolumes(volumes); err != nil {
		return
	}
	if pc.Logger != nil {
		pc.Logger.Info("pin cell built",
			"regions", g.NumRegions(), "tracks", ts.NumTracks(), "segments", ts.NumSegments(),
			"azimuthal", ld.NumAzim, "polar", ts.NumPolar(), "spacing", ld.Spacing)
	}
	p = &Problem{Geometry: g, Tracks: ts}
	return
}

func (p *Problem) NewSolver(cfg solver.Config) (*solver.Solver, error) {
	return solver.NewSolver(p.Geometry, p.Tracks, cfg)
}

// NewPinCell builds the pin cell described by the input file
func NewPinCell(ip *InputParameters.InputParameters) (pc *PinCell, err error) {
	var (
		mats map[int]*material.Material
		bc   types.BoundaryType
		in   = ip.PinCell
	)
	if mats, err = ip.BuildMaterials(); err != nil {
		return
	}
	if bc, err = ip.BoundaryType(); err != nil {
		return
	}
	pc = &PinCell{
		Pitch:            in.Pitch,
		FuelRadius:       in.FuelRadius,
		FuelRings:        in.FuelRings,
		FuelSectors:      in.FuelSectors,
		ModeratorSectors: in.ModeratorSectors,
		BC:               bc,
		Fuel:             mats[in.Fuel],
		Moderator:        mats[in.Moderator],
	}
	if pc.Fuel == nil || pc.Moderator == nil {
		return nil, fmt.Errorf("%w: fuel material %d or moderator material %d is not defined",
			InputParameters.ErrInput, in.Fuel, in.Moderator)
	}
	return
}
