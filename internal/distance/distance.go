package distance

import (
	"fmt"
	"math"
	"slices"
)

// Space names the distance function of a collection.
type Space string

const (
	SpaceL2     Space = "l2"
	SpaceCosine Space = "cosine"
	SpaceIP     Space = "ip"
)

// String implements fmt.Stringer.
func (s Space) String() string { return string(s) }

// ParseSpace validates a configured space name. The empty string selects SpaceL2.
func ParseSpace(name string) (Space, error) {
	switch Space(name) {
	case "", SpaceL2:
		return SpaceL2, nil
	case SpaceCosine:
		return SpaceCosine, nil
	case SpaceIP:
		return SpaceIP, nil
	default:
		return "", fmt.Errorf("unsupported space %q, expected one of l2, cosine, ip", name)
	}
}

// Func is a function type for distance calculation.
// Callers guarantee len(a) == len(b).
type Func func(a, b []float32) float32

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Cosine returns 1 - cos(a, b). Zero vectors are treated as orthogonal to everything.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/float32(math.Sqrt(float64(na)*float64(nb)))
}

// InnerProduct returns 1 - dot(a, b).
func InnerProduct(a, b []float32) float32 {
	return 1 - Dot(a, b)
}

// Provider returns the distance function for the given space.
func Provider(s Space) (Func, error) {
	switch s {
	case "", SpaceL2:
		return SquaredL2, nil
	case SpaceCosine:
		return Cosine, nil
	case SpaceIP:
		return InnerProduct, nil
	default:
		return nil, fmt.Errorf("unsupported space: %v", s)
	}
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}
