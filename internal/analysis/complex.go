// SPDX-License-Identifier: MIT
package analysis

import "math"

// Complex is a single-precision complex sample. The transform works on
// float32 pairs rather than complex128 to keep the spectrum buffer at half
// the size and the arithmetic at the precision the bars are delivered in.
type Complex struct {
	Re, Im float32
}

// Add returns c + o.
func (c Complex) Add(o Complex) Complex {
	return Complex{c.Re + o.Re, c.Im + o.Im}
}

// Sub returns c - o.
func (c Complex) Sub(o Complex) Complex {
	return Complex{c.Re - o.Re, c.Im - o.Im}
}

// Mul returns the complex product c * o.
func (c Complex) Mul(o Complex) Complex {
	return Complex{
		Re: c.Re*o.Re - c.Im*o.Im,
		Im: c.Re*o.Im + c.Im*o.Re,
	}
}

// Abs returns the magnitude sqrt(re² + im²).
func (c Complex) Abs() float32 {
	return float32(math.Sqrt(float64(c.Re*c.Re + c.Im*c.Im)))
}

// complex128 widens c for interop with gonum.
func (c Complex) complex128() complex128 {
	return complex(float64(c.Re), float64(c.Im))
}

func fromComplex128(v complex128) Complex {
	return Complex{Re: float32(real(v)), Im: float32(imag(v))}
}
