package solver

// ShapeValue is the value and physical gradient of a function at a point
type ShapeValue struct {
	Val, Dx, Dy float64
}

func (a ShapeValue) Sub(b ShapeValue) ShapeValue {
	return ShapeValue{Val: a.Val - b.Val, Dx: a.Dx - b.Dx, Dy: a.Dy - b.Dy}
}

func (a ShapeValue) Scale(c float64) ShapeValue {
	return ShapeValue{Val: c * a.Val, Dx: c * a.Dx, Dy: c * a.Dy}
}

// BilinearForm is the volume integrand a(u,v) of the weak form
type BilinearForm interface {
	Integrand(u, v ShapeValue, x, y float64) float64
	Symmetric() bool
}

// LinearForm is the volume integrand l(v) of the weak form
type LinearForm interface {
	Integrand(v ShapeValue, x, y float64) float64
}

// SymmetricForm adapts a function to a symmetric BilinearForm
type SymmetricForm func(u, v ShapeValue, x, y float64) float64

func (f SymmetricForm) Integrand(u, v ShapeValue, x, y float64) float64 { return f(u, v, x, y) }
func (f SymmetricForm) Symmetric() bool                                  { return true }

// GeneralForm adapts a function to a non symmetric BilinearForm
type GeneralForm func(u, v ShapeValue, x, y float64) float64

func (f GeneralForm) Integrand(u, v ShapeValue, x, y float64) float64 { return f(u, v, x, y) }
func (f GeneralForm) Symmetric() bool                                  { return false }

type LinearFunc func(v ShapeValue, x, y float64) float64

func (f LinearFunc) Integrand(v ShapeValue, x, y float64) float64 { return f(v, x, y) }

// WeakForm pairs the volume integrands; Linear may be nil for a zero source
type WeakForm struct {
	Bilinear BilinearForm
	Linear   LinearForm
}

// Laplace is the bilinear form of -div grad u
var Laplace = SymmetricForm(func(u, v ShapeValue, x, y float64) float64 {
	return u.Dx*v.Dx + u.Dy*v.Dy
})

// H1Product is the full H1 inner product, used for projections
var H1Product = SymmetricForm(func(u, v ShapeValue, x, y float64) float64 {
	return u.Val*v.Val + u.Dx*v.Dx + u.Dy*v.Dy
})

// Source returns the linear form of a volume source f
func Source(f func(x, y float64) float64) LinearFunc {
	return func(v ShapeValue, x, y float64) float64 {
		return f(x, y) * v.Val
	}
}
