package material

import (
	"errors"
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomoc/utils"
)

var ErrInvalid = errors.New("invalid material data")

// CrossSections is the per energy group input for one material. SigmaS is a
// NumGroups x NumGroups matrix, row = destination group, column = origin
// group. A nil SigmaT is computed as SigmaA plus the out-scatter of each group.
type CrossSections struct {
	Name     string
	SigmaT   []float64
	SigmaA   []float64
	SigmaF   []float64
	NuSigmaF []float64
	Chi      []float64
	SigmaS   mat.Matrix
}

// Material holds group-wise macroscopic cross sections. After AlignData the
// slices are padded with inert zero groups to a multiple of the vector width,
// NumGroups still reports the physical count.
type Material struct {
	id               int
	Name             string
	numGroups        int
	numAlignedGroups int
	SigmaT           []float64
	SigmaA           []float64
	SigmaF           []float64
	NuSigmaF         []float64
	Chi              []float64
	sigmaS           *sparse.CSR
}

func NewMaterial(id int, xs CrossSections) (m *Material, err error) {
	var (
		G = len(xs.SigmaA)
	)
	if G == 0 {
		err = fmt.Errorf("material %d: no energy groups: %w", id, ErrInvalid)
		return
	}
	check := func(name string, v []float64) error {
		if len(v) != G {
			return fmt.Errorf("material %d: %s has %d groups, expected %d: %w", id, name, len(v), G, ErrInvalid)
		}
		if !utils.IsFinite(v) || floats.Min(v) < 0 {
			return fmt.Errorf("material %d: %s must be finite and non-negative: %w", id, name, ErrInvalid)
		}
		return nil
	}
	for _, p := range []struct {
		name string
		v    []float64
	}{{"sigma_a", xs.SigmaA}, {"sigma_f", xs.SigmaF}, {"nu_sigma_f", xs.NuSigmaF}, {"chi", xs.Chi}} {
		if err = check(p.name, p.v); err != nil {
			return
		}
	}
	if xs.SigmaS == nil {
		err = fmt.Errorf("material %d: missing scattering matrix: %w", id, ErrInvalid)
		return
	}
	if nr, nc := xs.SigmaS.Dims(); nr != G || nc != G {
		err = fmt.Errorf("material %d: scattering matrix is %dx%d, expected %dx%d: %w", id, nr, nc, G, G, ErrInvalid)
		return
	}
	m = &Material{
		id:               id,
		Name:             xs.Name,
		numGroups:        G,
		numAlignedGroups: G,
		SigmaA:           append([]float64{}, xs.SigmaA...),
		SigmaF:           append([]float64{}, xs.SigmaF...),
		NuSigmaF:         append([]float64{}, xs.NuSigmaF...),
		Chi:              append([]float64{}, xs.Chi...),
	}
	var (
		dok     = sparse.NewDOK(G, G)
		outScat = make([]float64, G)
	)
	for gDst := 0; gDst < G; gDst++ {
		for gOrg := 0; gOrg < G; gOrg++ {
			v := xs.SigmaS.At(gDst, gOrg)
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				err = fmt.Errorf("material %d: scattering %d -> %d must be finite and non-negative: %w",
					id, gOrg, gDst, ErrInvalid)
				return nil, err
			}
			if v != 0 {
				dok.Set(gDst, gOrg, v)
				outScat[gOrg] += v
			}
		}
	}
	m.sigmaS = dok.ToCSR()
	if xs.SigmaT == nil {
		m.SigmaT = make([]float64, G)
		floats.AddTo(m.SigmaT, m.SigmaA, outScat)
	} else {
		if err = check("sigma_t", xs.SigmaT); err != nil {
			return nil, err
		}
		m.SigmaT = append([]float64{}, xs.SigmaT...)
	}
	return
}

func (m *Material) ID() int { return m.id }

// NumGroups is the physical group count
func (m *Material) NumGroups() int { return m.numGroups }

// NumAlignedGroups is the padded group count, equal to NumGroups until
// AlignData is called
func (m *Material) NumAlignedGroups() int { return m.numAlignedGroups }

func (m *Material) IsFissionable() bool {
	return floats.Max(m.NuSigmaF) > 0
}

// SigmaS returns the scattering cross section from group gOrg into group gDst
func (m *Material) SigmaS(gDst, gOrg int) float64 { return m.sigmaS.At(gDst, gOrg) }

// ScatterSource sets dst[g] to the in-scatter rate into group g from the
// group flux. Both slices are NumAlignedGroups long.
func (m *Material) ScatterSource(dst, flux []float64) {
	var (
		raw = m.sigmaS.RawMatrix()
	)
	for gDst := 0; gDst < raw.I; gDst++ {
		var sum float64
		for k := raw.Indptr[gDst]; k < raw.Indptr[gDst+1]; k++ {
			sum += raw.Data[k] * flux[raw.Ind[k]]
		}
		dst[gDst] = sum
	}
}

// AlignData zero pads every group array to the next multiple of width, each
// new array starting on an alignment byte boundary. The padded groups have
// zero cross sections and do not scatter.
func (m *Material) AlignData(width, alignment int) (err error) {
	var (
		Gp, _ = utils.RoundUpToWidth(m.numGroups, width)
	)
	pad := func(name string, v []float64) (buf []float64, err error) {
		if buf, err = utils.AlignedFloat64s(fmt.Sprintf("material %d %s", m.id, name), Gp, alignment); err != nil {
			return
		}
		copy(buf, v[:m.numGroups])
		return
	}
	var sigT, sigA, sigF, nuSigF, chi []float64
	if sigT, err = pad("sigma_t", m.SigmaT); err != nil {
		return
	}
	if sigA, err = pad("sigma_a", m.SigmaA); err != nil {
		return
	}
	if sigF, err = pad("sigma_f", m.SigmaF); err != nil {
		return
	}
	if nuSigF, err = pad("nu_sigma_f", m.NuSigmaF); err != nil {
		return
	}
	if chi, err = pad("chi", m.Chi); err != nil {
		return
	}
	var (
		dok = sparse.NewDOK(Gp, Gp)
		raw = m.sigmaS.RawMatrix()
	)
	for gDst := 0; gDst < raw.I; gDst++ {
		for k := raw.Indptr[gDst]; k < raw.Indptr[gDst+1]; k++ {
			dok.Set(gDst, raw.Ind[k], raw.Data[k])
		}
	}
	m.SigmaT, m.SigmaA, m.SigmaF, m.NuSigmaF, m.Chi = sigT, sigA, sigF, nuSigF, chi
	m.sigmaS = dok.ToCSR()
	m.numAlignedGroups = Gp
	return
}

func (m *Material) String() string {
	return fmt.Sprintf("Material id = %d, name = %q, groups = %d (aligned %d), fissionable = %v",
		m.id, m.Name, m.numGroups, m.numAlignedGroups, m.IsFissionable())
}
