package InputParameters

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ghodss/yaml"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/quadrature"
	"github.com/notargets/gomoc/solver"
	"github.com/notargets/gomoc/track"
	"github.com/notargets/gomoc/types"
)

var ErrInput = errors.New("invalid input parameters")

// Parameters obtained from the YAML input file. ghodss/yaml converts the
// document to JSON first, so the json tags carry the key names.
type InputParameters struct {
	Title     string                `json:"Title"`
	Solver    SolverParameters      `json:"Solver"`
	Tracks    TrackParameters       `json:"Tracks"`
	PinCell   PinCellParameters     `json:"PinCell"`
	Materials map[int]MaterialInput `json:"Materials"` // Keyed by material id
}

type SolverParameters struct {
	NumThreads              int     `json:"NumThreads"`
	VectorWidth             int     `json:"VectorWidth"`
	VectorAlignment         int     `json:"VectorAlignment"`
	Tolerance               float64 `json:"Tolerance"`
	MaxIterations           int     `json:"MaxIterations"`
	InterpolateExponentials bool    `json:"InterpolateExponentials"`
	ExpTableTolerance       float64 `json:"ExpTableTolerance"`
}

type TrackParameters struct {
	NumAzim    int     `json:"NumAzim"`
	Spacing    float64 `json:"Spacing"`
	Quadrature string  `json:"Quadrature"` // tabuchi_yamamoto or gauss_legendre
	NumPolar   int     `json:"NumPolar"`
}

type PinCellParameters struct {
	Pitch            float64 `json:"Pitch"`
	FuelRadius       float64 `json:"FuelRadius"`
	FuelRings        int     `json:"FuelRings"`
	FuelSectors      int     `json:"FuelSectors"`
	ModeratorSectors int     `json:"ModeratorSectors"`
	BC               string  `json:"BC"`
	Fuel             int     `json:"Fuel"` // Material ids
	Moderator        int     `json:"Moderator"`
}

// MaterialInput holds per group cross sections, SigmaS[gDst][gOrg]. A missing
// SigmaT is computed from absorption plus out-scatter.
type MaterialInput struct {
	Name     string      `json:"Name"`
	SigmaT   []float64   `json:"SigmaT"`
	SigmaA   []float64   `json:"SigmaA"`
	SigmaF   []float64   `json:"SigmaF"`
	NuSigmaF []float64   `json:"NuSigmaF"`
	Chi      []float64   `json:"Chi"`
	SigmaS   [][]float64 `json:"SigmaS"`
}

func (ip *InputParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return fmt.Errorf("%w: %w", ErrInput, err)
	}
	return nil
}

func (ip *InputParameters) Print(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	fmt.Fprintf(w, "[%d]\t\t\t= Threads\n", ip.Solver.NumThreads)
	fmt.Fprintf(w, "%8.2e\t\t= Tolerance\n", ip.Solver.Tolerance)
	fmt.Fprintf(w, "[%d]\t\t\t= Max Iterations\n", ip.Solver.MaxIterations)
	fmt.Fprintf(w, "[%v]\t\t\t= Interpolate Exponentials\n", ip.Solver.InterpolateExponentials)
	fmt.Fprintf(w, "[%d]\t\t\t= Azimuthal Angles\n", ip.Tracks.NumAzim)
	fmt.Fprintf(w, "%8.5f\t\t= Track Spacing\n", ip.Tracks.Spacing)
	fmt.Fprintf(w, "[%s/%d]\t= Polar Quadrature\n", ip.Tracks.Quadrature, ip.Tracks.NumPolar)
	pc := ip.PinCell
	fmt.Fprintf(w, "%8.5f\t\t= Pitch\n", pc.Pitch)
	fmt.Fprintf(w, "%8.5f\t\t= Fuel Radius\n", pc.FuelRadius)
	fmt.Fprintf(w, "[%d x %d]\t\t= Fuel Rings x Sectors\n", pc.FuelRings, pc.FuelSectors)
	fmt.Fprintf(w, "[%d]\t\t\t= Moderator Sectors\n", pc.ModeratorSectors)
	fmt.Fprintf(w, "[%s]\t\t= BC\n", pc.BC)
	keys := make([]int, 0, len(ip.Materials))
	for k := range ip.Materials {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, key := range keys {
		m := ip.Materials[key]
		fmt.Fprintf(w, "Materials[%d] = %q, %d groups\n", key, m.Name, len(m.SigmaA))
	}
}

func (ip *InputParameters) SolverConfig() solver.Config {
	sp := ip.Solver
	return solver.Config{
		NumThreads:              sp.NumThreads,
		VectorWidth:             sp.VectorWidth,
		VectorAlignment:         sp.VectorAlignment,
		Tolerance:               sp.Tolerance,
		MaxIterations:           sp.MaxIterations,
		InterpolateExponentials: sp.InterpolateExponentials,
		ExpTableTolerance:       sp.ExpTableTolerance,
	}
}

// Laydown defaults to three Tabuchi-Yamamoto polar angles
func (ip *InputParameters) Laydown(numThreads int) (ld track.Laydown, err error) {
	var (
		name = ip.Tracks.Quadrature
		np   = ip.Tracks.NumPolar
	)
	if name == "" {
		name = "tabuchi_yamamoto"
	}
	if np == 0 {
		np = 3
	}
	if ld.Polar, err = quadrature.NewPolar(name, np); err != nil {
		return
	}
	ld.NumAzim, ld.Spacing, ld.NumThreads = ip.Tracks.NumAzim, ip.Tracks.Spacing, numThreads
	return
}

// BoundaryType parses the pin cell BC name, reflective when empty
func (ip *InputParameters) BoundaryType() (bc types.BoundaryType, err error) {
	if ip.PinCell.BC == "" {
		return types.BC_Reflective, nil
	}
	var ok bool
	if bc, ok = types.ParseBCName(ip.PinCell.BC); !ok {
		err = fmt.Errorf("%w: unknown boundary condition %q", ErrInput, ip.PinCell.BC)
	}
	return
}

func (ip *InputParameters) BuildMaterials() (mats map[int]*material.Material, err error) {
	if len(ip.Materials) == 0 {
		return nil, fmt.Errorf("%w: no materials", ErrInput)
	}
	mats = make(map[int]*material.Material, len(ip.Materials))
	for id, mi := range ip.Materials {
		if mats[id], err = mi.Material(id); err != nil {
			return nil, err
		}
	}
	return
}

func (mi MaterialInput) Material(id int) (m *material.Material, err error) {
	G := len(mi.SigmaA)
	if len(mi.SigmaS) != G {
		return nil, fmt.Errorf("%w: material %d scattering matrix has %d rows, expected %d",
			ErrInput, id, len(mi.SigmaS), G)
	}
	var sigS *mat.Dense
	if G > 0 {
		sigS = mat.NewDense(G, G, nil)
		for gDst, row := range mi.SigmaS {
			if len(row) != G {
				return nil, fmt.Errorf("%w: material %d scattering row %d has %d entries, expected %d",
					ErrInput, id, gDst, len(row), G)
			}
			sigS.SetRow(gDst, row)
		}
	}
	xs := material.CrossSections{
		Name:     mi.Name,
		SigmaT:   mi.SigmaT,
		SigmaA:   mi.SigmaA,
		SigmaF:   mi.SigmaF,
		NuSigmaF: mi.NuSigmaF,
		Chi:      mi.Chi,
	}
	if sigS != nil {
		xs.SigmaS = sigS
	}
	return material.NewMaterial(id, xs)
}
