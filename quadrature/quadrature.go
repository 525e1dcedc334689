package quadrature

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
)

var ErrQuadrature = errors.New("unsupported polar quadrature")

type QuadratureType uint8

const (
	TABUCHI_YAMAMOTO QuadratureType = iota
	GAUSS_LEGENDRE
)

func (qt QuadratureType) String() string {
	switch qt {
	case TABUCHI_YAMAMOTO:
		return "TABUCHI_YAMAMOTO"
	case GAUSS_LEGENDRE:
		return "GAUSS_LEGENDRE"
	}
	return "UNKNOWN"
}

var QuadratureNameMap = map[string]QuadratureType{
	"tabuchi_yamamoto": TABUCHI_YAMAMOTO,
	"ty":               TABUCHI_YAMAMOTO,
	"gauss_legendre":   GAUSS_LEGENDRE,
	"gl":               GAUSS_LEGENDRE,
}

// Polar is a polar angle quadrature over the half range (0, pi/2). The
// weights sum to one, the other half range follows by symmetry.
type Polar struct {
	Type      QuadratureType
	sinThetas []float64
	weights   []float64
	multiples []float64 // sinTheta * weight
}

// Tabuchi-Yamamoto optimal sets
var tySets = map[int]struct{ sinThetas, weights []float64 }{
	1: {[]float64{0.798184}, []float64{1.0}},
	2: {[]float64{0.363900, 0.899900}, []float64{0.212854, 0.787146}},
	3: {[]float64{0.166648, 0.537707, 0.932954}, []float64{0.046233, 0.283619, 0.670148}},
}

func NewPolar(name string, numPolar int) (p *Polar, err error) {
	qt, ok := QuadratureNameMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		err = fmt.Errorf("%w: unknown type %q", ErrQuadrature, name)
		return
	}
	switch qt {
	case TABUCHI_YAMAMOTO:
		return NewTabuchiYamamoto(numPolar)
	default:
		return NewGaussLegendre(numPolar)
	}
}

func NewTabuchiYamamoto(numPolar int) (p *Polar, err error) {
	set, ok := tySets[numPolar]
	if !ok {
		err = fmt.Errorf("%w: Tabuchi-Yamamoto is defined for 1, 2 or 3 polar angles, not %d",
			ErrQuadrature, numPolar)
		return
	}
	p = newPolar(TABUCHI_YAMAMOTO, append([]float64{}, set.sinThetas...), append([]float64{}, set.weights...))
	return
}

// NewGaussLegendre places the Gauss-Legendre nodes on mu = cos(theta) in (0, 1)
func NewGaussLegendre(numPolar int) (p *Polar, err error) {
	if numPolar < 1 {
		err = fmt.Errorf("%w: Gauss-Legendre needs at least one polar angle, have %d", ErrQuadrature, numPolar)
		return
	}
	var (
		mu = make([]float64, numPolar)
		w  = make([]float64, numPolar)
	)
	quad.Legendre{}.FixedLocations(mu, w, 0, 1)
	sinThetas := make([]float64, numPolar)
	for i, m := range mu {
		sinThetas[i] = math.Sqrt(1 - m*m)
	}
	floats.Scale(1/floats.Sum(w), w)
	p = newPolar(GAUSS_LEGENDRE, sinThetas, w)
	return
}

func newPolar(qt QuadratureType, sinThetas, weights []float64) (p *Polar) {
	p = &Polar{
		Type:      qt,
		sinThetas: sinThetas,
		weights:   weights,
		multiples: make([]float64, len(weights)),
	}
	floats.MulTo(p.multiples, sinThetas, weights)
	return
}

func (p *Polar) NumPolar() int          { return len(p.weights) }
func (p *Polar) SinThetas() []float64   { return p.sinThetas }
func (p *Polar) Weights() []float64     { return p.weights }
func (p *Polar) SinTheta(i int) float64 { return p.sinThetas[i] }
func (p *Polar) Weight(i int) float64   { return p.weights[i] }
func (p *Polar) Multiple(i int) float64 { return p.multiples[i] }
func (p *Polar) Multiples() []float64   { return p.multiples }
func (p *Polar) Theta(i int) float64    { return math.Asin(p.sinThetas[i]) }

func (p *Polar) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Polar quadrature type = %s, num polar = %d", p.Type, p.NumPolar())
	for i := range p.weights {
		fmt.Fprintf(&sb, "\n  sin(theta) = %f, weight = %f", p.sinThetas[i], p.weights[i])
	}
	return sb.String()
}
