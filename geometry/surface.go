package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/gomoc/types"
)

const (
	ON_SURFACE_THRESH = 1.e-12 // Incidence threshold for every surface type and every containment test
	VERTICAL_TOL      = 1.e-10 // Rays within this angle of vertical take the x = x0 branch
	PARALLEL_TOL      = 1.e-11 // Slope difference below which a ray and a plane are parallel
)

var ErrInvalidSurface = errors.New("invalid surface")

type SurfaceType uint8

const (
	PLANE SurfaceType = iota
	XPLANE
	YPLANE
	ZPLANE
	CIRCLE
)

func (st SurfaceType) String() string {
	switch st {
	case PLANE:
		return "PLANE"
	case XPLANE:
		return "XPLANE"
	case YPLANE:
		return "YPLANE"
	case ZPLANE:
		return "ZPLANE"
	case CIRCLE:
		return "CIRCLE"
	}
	return "UNKNOWN"
}

// Surface is one analytic boundary. Planes are A*x + B*y + C = 0, circles are
// A*x^2 + B*y^2 + C*x + D*y + E = 0 with A = B = 1. The variant is selected by
// the type tag, every query switches on it.
type Surface struct {
	id, uid       int
	surfType      SurfaceType
	boundary      types.BoundaryType
	A, B, C, D, E float64
	position      float64 // Axis position of XPLANE, YPLANE and ZPLANE
	center        r2.Vec
	radius        float64
}

func newSurface(ids *IDAllocator, st SurfaceType, id int) (s *Surface, err error) {
	s = &Surface{surfType: st, boundary: types.BC_None}
	if s.id, s.uid, err = ids.SurfaceID(id); err != nil {
		return nil, err
	}
	return
}

func NewPlane(ids *IDAllocator, A, B, C float64, id int) (s *Surface, err error) {
	if s, err = newSurface(ids, PLANE, id); err != nil {
		return
	}
	s.A, s.B, s.C = A, B, C
	return
}

func NewXPlane(ids *IDAllocator, x float64, id int) (s *Surface, err error) {
	if s, err = newSurface(ids, XPLANE, id); err != nil {
		return
	}
	s.A, s.B, s.C = 1, 0, -x
	s.position = x
	return
}

func NewYPlane(ids *IDAllocator, y float64, id int) (s *Surface, err error) {
	if s, err = newSurface(ids, YPLANE, id); err != nil {
		return
	}
	s.A, s.B, s.C = 0, 1, -y
	s.position = y
	return
}

func NewZPlane(ids *IDAllocator, z float64, id int) (s *Surface, err error) {
	if s, err = newSurface(ids, ZPLANE, id); err != nil {
		return
	}
	s.A, s.B, s.C = 0, 0, -z
	s.position = z
	return
}

func NewCircle(ids *IDAllocator, x, y, radius float64, id int) (s *Surface, err error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		err = fmt.Errorf("circle radius must be positive and finite, have %v: %w", radius, ErrInvalidSurface)
		return
	}
	if s, err = newSurface(ids, CIRCLE, id); err != nil {
		return
	}
	s.A, s.B = 1, 1
	s.C, s.D = -2*x, -2*y
	s.E = x*x + y*y - radius*radius
	s.center = r2.Vec{X: x, Y: y}
	s.radius = radius
	return
}

func (s *Surface) ID() int                          { return s.id }
func (s *Surface) UID() int                         { return s.uid }
func (s *Surface) Type() SurfaceType                { return s.surfType }
func (s *Surface) BoundaryType() types.BoundaryType { return s.boundary }
func (s *Surface) Center() r2.Vec                   { return s.center }
func (s *Surface) Radius() float64                  { return s.radius }

func (s *Surface) SetBoundaryType(bc types.BoundaryType) { s.boundary = bc }

// Position is the axis location of an axis aligned plane
func (s *Surface) Position() (pos float64, err error) {
	switch s.surfType {
	case XPLANE, YPLANE, ZPLANE:
		pos = s.position
	default:
		err = fmt.Errorf("surface %d is a %s and has no axis position: %w", s.id, s.surfType, ErrInvalidSurface)
	}
	return
}

func (s *Surface) SetX(x float64) error {
	if s.surfType != XPLANE {
		return fmt.Errorf("SetX on %s surface %d: %w", s.surfType, s.id, ErrInvalidSurface)
	}
	s.position, s.C = x, -x
	return nil
}

func (s *Surface) SetY(y float64) error {
	if s.surfType != YPLANE {
		return fmt.Errorf("SetY on %s surface %d: %w", s.surfType, s.id, ErrInvalidSurface)
	}
	s.position, s.C = y, -y
	return nil
}

func (s *Surface) SetZ(z float64) error {
	if s.surfType != ZPLANE {
		return fmt.Errorf("SetZ on %s surface %d: %w", s.surfType, s.id, ErrInvalidSurface)
	}
	s.position, s.C = z, -z
	return nil
}

// Evaluate returns the value of the surface equation at p, the sign gives the
// side of the surface the point is on
func (s *Surface) Evaluate(p r2.Vec) float64 {
	switch s.surfType {
	case CIRCLE:
		return s.A*p.X*p.X + s.B*p.Y*p.Y + s.C*p.X + s.D*p.Y + s.E
	default:
		return s.A*p.X + s.B*p.Y + s.C
	}
}

func (s *Surface) IsOnSurface(p r2.Vec) bool {
	return math.Abs(s.Evaluate(p)) < ON_SURFACE_THRESH
}

// Intersect finds the intersections of the surface with the ray leaving p at
// angle (radians in [0, 2pi)) which lie forward along the ray. Forward is
// decided on y alone: the candidate must be above p for angle < pi and below
// p for angle > pi. A ray at exactly 0 or pi is horizontal, neither test can
// pass, and it reports no intersections. Circle roots are returned in
// discriminant order, not sorted by distance.
func (s *Surface) Intersect(p r2.Vec, angle float64) (points [2]r2.Vec, num int) {
	switch s.surfType {
	case CIRCLE:
		return s.intersectCircle(p, angle)
	default:
		return s.intersectPlane(p, angle)
	}
}

func isVertical(angle float64) bool {
	return math.Abs(angle-math.Pi/2) < VERTICAL_TOL || math.Abs(angle-3*math.Pi/2) < VERTICAL_TOL
}

func isForward(angle, y, y0 float64) bool {
	return (angle < math.Pi && y > y0) || (angle > math.Pi && y < y0)
}

func (s *Surface) intersectPlane(p r2.Vec, angle float64) (points [2]r2.Vec, num int) {
	var (
		x0, y0       = p.X, p.Y
		xcurr, ycurr float64
	)
	if s.A == 0 && s.B == 0 { // ZPLANE, no trace in the x-y plane
		return
	}
	if isVertical(angle) {
		if s.B == 0 { // Plane is also vertical
			return
		}
		xcurr = x0
		ycurr = (-s.A*x0 - s.C) / s.B
	} else {
		m := math.Sin(angle) / math.Cos(angle)
		if s.B != 0 && math.Abs(-s.A/s.B-m) < PARALLEL_TOL {
			return
		}
		den := s.A + s.B*m
		if den == 0 {
			return
		}
		xcurr = -(s.B*(y0-m*x0) + s.C) / den
		ycurr = y0 + m*(xcurr-x0)
	}
	if isForward(angle, ycurr, y0) {
		points[num] = r2.Vec{X: xcurr, Y: ycurr}
		num++
	}
	return
}

func (s *Surface) intersectCircle(p r2.Vec, angle float64) (points [2]r2.Vec, num int) {
	var (
		x0, y0        = p.X, p.Y
		a, b, c, disc float64
		vertical      = isVertical(angle)
		m, q          float64
	)
	add := func(x, y float64) {
		if isForward(angle, y, y0) {
			points[num] = r2.Vec{X: x, Y: y}
			num++
		}
	}
	if vertical {
		// F(x0, y) = 0 as a quadratic in y
		a = s.B
		b = s.D
		c = s.A*x0*x0 + s.C*x0 + s.E
	} else {
		// F(x, y0 + m*(x - x0)) = 0 as a quadratic in x
		m = math.Sin(angle) / math.Cos(angle)
		q = y0 - m*x0
		a = s.A + s.B*m*m
		b = 2*s.B*m*q + s.C + s.D*m
		c = s.B*q*q + s.D*q + s.E
	}
	disc = b*b - 4*a*c
	switch {
	case disc < 0:
		return
	case disc == 0:
		r := -b / (2 * a)
		if vertical {
			add(x0, r)
		} else {
			add(r, y0+m*(r-x0))
		}
	default:
		sq := math.Sqrt(disc)
		for _, r := range [2]float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)} {
			if vertical {
				add(x0, r)
			} else {
				add(r, y0+m*(r-x0))
			}
		}
	}
	return
}

// MinDistance is the distance from p to the closest forward intersection, or
// +Inf when the ray does not cross the surface
func (s *Surface) MinDistance(p r2.Vec, angle float64) (dist float64, point r2.Vec) {
	dist = math.Inf(1)
	points, num := s.Intersect(p, angle)
	for i := 0; i < num; i++ {
		if d := r2.Norm(r2.Sub(points[i], p)); d < dist {
			dist, point = d, points[i]
		}
	}
	return
}

// Extents returns the axis aligned bounds of the surface, +/-Inf where the
// surface is unbounded
func (s *Surface) Extents() (xmin, xmax, ymin, ymax float64) {
	var (
		inf = math.Inf(1)
	)
	xmin, xmax, ymin, ymax = -inf, inf, -inf, inf
	switch s.surfType {
	case XPLANE:
		xmin, xmax = s.position, s.position
	case YPLANE:
		ymin, ymax = s.position, s.position
	case CIRCLE:
		xmin, xmax = s.center.X-s.radius, s.center.X+s.radius
		ymin, ymax = s.center.Y-s.radius, s.center.Y+s.radius
	}
	return
}

func (s *Surface) String() string {
	var (
		str = fmt.Sprintf("Surface id = %d, type = %s, A = %g, B = %g, C = %g",
			s.id, s.surfType, s.A, s.B, s.C)
	)
	switch s.surfType {
	case XPLANE:
		str += fmt.Sprintf(", x = %g", s.position)
	case YPLANE:
		str += fmt.Sprintf(", y = %g", s.position)
	case ZPLANE:
		str += fmt.Sprintf(", z = %g", s.position)
	case CIRCLE:
		str += fmt.Sprintf(", D = %g, E = %g, x0 = %g, y0 = %g, radius = %g",
			s.D, s.E, s.center.X, s.center.Y, s.radius)
	}
	return str + ", boundary = " + s.boundary.String()
}
