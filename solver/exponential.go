package solver

import (
	"fmt"
	"math"
)

// expEvaluator fills dst[p*G+g] with 1 - exp(-sigmaT[g]*length/sin(theta_p))
type expEvaluator interface {
	Compute(dst, sigmaT []float64, length float64)
}

type directExp struct {
	sinThetas []float64
}

func (e directExp) Compute(dst, sigmaT []float64, length float64) {
	G := len(sigmaT)
	for p, sinT := range e.sinThetas {
		row := dst[p*G : (p+1)*G]
		for g, st := range sigmaT {
			row[g] = -math.Expm1(-st * length / sinT)
		}
	}
}

// MaxTableTau is the in-plane optical length covered by the exponential
// table, longer segments are evaluated exactly
const MaxTableTau = 10.

// ExpTable approximates 1 - exp(-tau/sin(theta_p)) by the tangent line at
// the nearest table node. Each entry holds a slope and an intercept per polar
// angle, laid out [node][polar][slope, intercept].
type ExpTable struct {
	sinThetas []float64
	spacing   float64
	invSp     float64
	numNodes  int
	table     []float64
}

// NewExpTable sizes the node spacing so the tangent line error, at most
// h^2/(8 sin^2), stays under tol for the smallest polar sine
func NewExpTable(sinThetas []float64, tol float64) (et *ExpTable, err error) {
	if len(sinThetas) == 0 || !(tol > 0) {
		err = fmt.Errorf("%w: exponential table needs polar angles and a positive tolerance, have %d angles, tol = %g",
			ErrConfig, len(sinThetas), tol)
		return
	}
	minSin := math.Inf(1)
	for _, s := range sinThetas {
		if !(s > 0) || s > 1 {
			err = fmt.Errorf("%w: polar sine %g out of range", ErrConfig, s)
			return
		}
		minSin = math.Min(minSin, s)
	}
	var (
		h  = math.Sqrt(8*tol) * minSin
		nn = int(math.Ceil(MaxTableTau/h)) + 1
		P  = len(sinThetas)
	)
	et = &ExpTable{
		sinThetas: sinThetas,
		spacing:   MaxTableTau / float64(nn-1),
		numNodes:  nn,
		table:     make([]float64, 2*P*nn),
	}
	et.invSp = 1 / et.spacing
	for i := 0; i < nn; i++ {
		tau := float64(i) * et.spacing
		for p, s := range sinThetas {
			var (
				ex = math.Exp(-tau / s)
				k  = 2 * (i*P + p)
			)
			et.table[k] = ex / s
			et.table[k+1] = 1 - ex*(1+tau/s)
		}
	}
	return
}

func (et *ExpTable) NumNodes() int    { return et.numNodes }
func (et *ExpTable) Spacing() float64 { return et.spacing }

// Eval returns the table estimate for one optical length and polar angle
func (et *ExpTable) Eval(tau float64, p int) float64 {
	if tau >= MaxTableTau {
		return -math.Expm1(-tau / et.sinThetas[p])
	}
	var (
		i = int(tau*et.invSp + 0.5)
		k = 2 * (i*len(et.sinThetas) + p)
	)
	return et.table[k]*tau + et.table[k+1]
}

func (et *ExpTable) Compute(dst, sigmaT []float64, length float64) {
	G := len(sigmaT)
	for p := range et.sinThetas {
		row := dst[p*G : (p+1)*G]
		for g, st := range sigmaT {
			row[g] = et.Eval(st*length, p)
		}
	}
}
