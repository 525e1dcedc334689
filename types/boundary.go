package types

import "strings"

// BoundaryType is the condition applied where a track leaves the geometry
// through a surface
type BoundaryType uint8

const (
	BC_None       BoundaryType = iota // Interior surface, no boundary condition
	BC_Vacuum                         // Outgoing angular flux leaks and is lost
	BC_Reflective                     // Outgoing angular flux re-enters along the reflected track
)

func (bc BoundaryType) String() string {
	switch bc {
	case BC_None:
		return "NONE"
	case BC_Vacuum:
		return "VACUUM"
	case BC_Reflective:
		return "REFLECTIVE"
	}
	return "UNKNOWN"
}

// Transmission is the fraction of outgoing angular flux carried into the
// connected track: one for reflective ends, zero otherwise
func (bc BoundaryType) Transmission() float64 {
	if bc == BC_Reflective {
		return 1
	}
	return 0
}

// BCNameMap maps lowercase boundary names to BoundaryType
var BCNameMap = map[string]BoundaryType{
	"none":       BC_None,
	"interior":   BC_None,
	"vacuum":     BC_Vacuum,
	"zero_flux":  BC_Vacuum,
	"leakage":    BC_Vacuum,
	"reflective": BC_Reflective,
	"reflect":    BC_Reflective,
	"symmetry":   BC_Reflective,
}

// ParseBCName converts a boundary condition name to a BoundaryType, the
// matching is case-insensitive and trims whitespace
func ParseBCName(name string) (bc BoundaryType, ok bool) {
	bc, ok = BCNameMap[strings.ToLower(strings.TrimSpace(name))]
	return
}
