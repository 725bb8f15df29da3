package geom

import "github.com/go-gl/mathgl/mgl64"

// Solve22 solves A * x = b using the upper-left 2x2 block of a.
// A singular block yields the zero vector.
func Solve22(a mgl64.Mat3, b mgl64.Vec2) mgl64.Vec2 {
	return Upper22(a).Inv().Mul2x1(b)
}

// Solve33 solves A * x = b. A singular matrix yields the zero vector.
func Solve33(a mgl64.Mat3, b mgl64.Vec3) mgl64.Vec3 {
	return a.Inv().Mul3x1(b)
}

// Upper22 extracts the upper-left 2x2 block.
func Upper22(a mgl64.Mat3) mgl64.Mat2 {
	return mgl64.Mat2{a[0], a[1], a[3], a[4]}
}

// Inverse22 returns the inverse of the upper-left 2x2 block embedded in a
// 3x3 matrix with zero third row and column.
func Inverse22(a mgl64.Mat3) mgl64.Mat3 {
	inv := Upper22(a).Inv()
	return mgl64.Mat3{
		inv[0], inv[1], 0,
		inv[2], inv[3], 0,
		0, 0, 0,
	}
}

// SymInverse33 returns the inverse of a symmetric 3x3 matrix, or zero if singular.
func SymInverse33(a mgl64.Mat3) mgl64.Mat3 {
	return a.Inv()
}
