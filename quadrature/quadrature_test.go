package quadrature

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestTabuchiYamamoto(t *testing.T) {
	for n := 1; n <= 3; n++ {
		p, err := NewTabuchiYamamoto(n)
		require.NoError(t, err)
		assert.Equal(t, n, p.NumPolar())
		assert.InDelta(t, 1., floats.Sum(p.Weights()), 1.e-6)
		for i := 0; i < n; i++ {
			assert.InDelta(t, p.SinTheta(i)*p.Weight(i), p.Multiple(i), 1.e-15)
			assert.True(t, p.SinTheta(i) > 0 && p.SinTheta(i) < 1)
		}
	}
	p, err := NewTabuchiYamamoto(1)
	require.NoError(t, err)
	assert.Equal(t, 0.798184, p.SinTheta(0))
	assert.Equal(t, TABUCHI_YAMAMOTO, p.Type)

	_, err = NewTabuchiYamamoto(4)
	assert.True(t, errors.Is(err, ErrQuadrature))
}

func TestGaussLegendre(t *testing.T) {
	{ // Test moments of mu = cos(theta) on (0, 1)
		for _, n := range []int{1, 2, 3, 6} {
			p, err := NewGaussLegendre(n)
			require.NoError(t, err)
			assert.Equal(t, n, p.NumPolar())
			assert.InDelta(t, 1., floats.Sum(p.Weights()), 1.e-14)
			var m1, m2 float64
			for i := 0; i < n; i++ {
				mu := math.Sqrt(1 - p.SinTheta(i)*p.SinTheta(i))
				m1 += p.Weight(i) * mu
				m2 += p.Weight(i) * mu * mu
			}
			assert.InDelta(t, 0.5, m1, 1.e-12)
			if n > 1 {
				assert.InDelta(t, 1./3., m2, 1.e-12)
			}
		}
	}
	{ // Test the name lookup
		p, err := NewPolar("GL", 4)
		require.NoError(t, err)
		assert.Equal(t, GAUSS_LEGENDRE, p.Type)
		p, err = NewPolar("tabuchi_yamamoto", 3)
		require.NoError(t, err)
		assert.Equal(t, TABUCHI_YAMAMOTO, p.Type)
		assert.Contains(t, p.String(), "TABUCHI_YAMAMOTO")
		_, err = NewPolar("leonard", 2)
		assert.True(t, errors.Is(err, ErrQuadrature))
		_, err = NewGaussLegendre(0)
		assert.True(t, errors.Is(err, ErrQuadrature))
	}
}
