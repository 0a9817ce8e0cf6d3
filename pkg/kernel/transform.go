package kernel

import "math"

// Transform is a rigid world placement: a translation plus roll/pitch/yaw
// rotation in radians, applied as Rz(yaw)·Ry(pitch)·Rx(roll) followed by the
// translation. The zero value is the identity.
type Transform struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Z     float64 `json:"z" yaml:"z"`
	Roll  float64 `json:"roll" yaml:"roll"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// Identity returns the identity placement.
func Identity() Transform {
	return Transform{}
}

// Translation returns a pure translation.
func Translation(x, y, z float64) Transform {
	return Transform{X: x, Y: y, Z: z}
}

// Position returns the translation component.
func (t Transform) Position() [3]float64 {
	return [3]float64{t.X, t.Y, t.Z}
}

// IsIdentity reports whether t leaves every point where it is.
func (t Transform) IsIdentity() bool {
	return t == Transform{}
}

// IsFinite reports whether every component is a finite number.
func (t Transform) IsFinite() bool {
	for _, v := range [...]float64{t.X, t.Y, t.Z, t.Roll, t.Pitch, t.Yaw} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
