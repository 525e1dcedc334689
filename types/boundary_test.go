package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundaryType(t *testing.T) {
	{ // Test name parsing
		tokens := []string{"VACUUM", " Reflective ", "zero_flux", "symmetry", "none"}
		expected := []BoundaryType{BC_Vacuum, BC_Reflective, BC_Vacuum, BC_Reflective, BC_None}
		for i, tok := range tokens {
			bc, ok := ParseBCName(tok)
			assert.True(t, ok)
			assert.Equal(t, expected[i], bc)
		}
		_, ok := ParseBCName("periodic")
		assert.False(t, ok)
	}
	{ // Test string form and transmission
		assert.Equal(t, "NONE", BC_None.String())
		assert.Equal(t, "VACUUM", BC_Vacuum.String())
		assert.Equal(t, "REFLECTIVE", BC_Reflective.String())
		assert.Equal(t, "UNKNOWN", BoundaryType(42).String())
		assert.Equal(t, 1., BC_Reflective.Transmission())
		assert.Equal(t, 0., BC_Vacuum.Transmission())
		assert.Equal(t, 0., BC_None.Transmission())
	}
}
