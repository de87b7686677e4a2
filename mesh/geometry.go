package mesh

// Map evaluates the element geometry at reference point (xi, eta).
// Quads use the bilinear map on [-1,1]^2, triangles the affine map on the triangle (-1,-1),(1,-1),(-1,1).
func (m *Mesh) Map(id int, xi, eta float64) (x, y float64, jac [2][2]float64, detJ float64) {
	var (
		el = &m.Elements[id]
		v  = el.Verts
	)
	var n, nxi, neta [4]float64
	if el.Shape == Quad {
		n = [4]float64{(1 - xi) * (1 - eta) / 4, (1 + xi) * (1 - eta) / 4, (1 + xi) * (1 + eta) / 4, (1 - xi) * (1 + eta) / 4}
		nxi = [4]float64{-(1 - eta) / 4, (1 - eta) / 4, (1 + eta) / 4, -(1 + eta) / 4}
		neta = [4]float64{-(1 - xi) / 4, -(1 + xi) / 4, (1 + xi) / 4, (1 - xi) / 4}
	} else {
		n = [4]float64{-(xi + eta) / 2, (1 + xi) / 2, (1 + eta) / 2}
		nxi = [4]float64{-0.5, 0.5, 0}
		neta = [4]float64{-0.5, 0, 0.5}
	}
	for i := 0; i < el.NumVertices(); i++ {
		p := m.Vertices[v[i]]
		x += n[i] * p.X
		y += n[i] * p.Y
		jac[0][0] += nxi[i] * p.X
		jac[0][1] += neta[i] * p.X
		jac[1][0] += nxi[i] * p.Y
		jac[1][1] += neta[i] * p.Y
	}
	detJ = jac[0][0]*jac[1][1] - jac[0][1]*jac[1][0]
	return
}

// InverseJacobian returns d(xi,eta)/d(x,y) at a reference point
func (m *Mesh) InverseJacobian(id int, xi, eta float64) (inv [2][2]float64, detJ float64) {
	var jac [2][2]float64
	_, _, jac, detJ = m.Map(id, xi, eta)
	inv[0][0] = jac[1][1] / detJ
	inv[0][1] = -jac[0][1] / detJ
	inv[1][0] = -jac[1][0] / detJ
	inv[1][1] = jac[0][0] / detJ
	return
}

// ToRoot maps a reference point of an element to the reference coordinates of its root element
func (m *Mesh) ToRoot(id int, xi, eta float64) (rx, ry float64) {
	el := &m.Elements[id]
	r := el.RefVerts
	if el.Shape == Quad {
		// descendants of a quad root are axis aligned rectangles in root coordinates
		rx = r[0][0] + (xi+1)/2*(r[1][0]-r[0][0])
		ry = r[0][1] + (eta+1)/2*(r[3][1]-r[0][1])
		return
	}
	l0, l1, l2 := -(xi+eta)/2, (1+xi)/2, (1+eta)/2
	rx = l0*r[0][0] + l1*r[1][0] + l2*r[2][0]
	ry = l0*r[0][1] + l1*r[1][1] + l2*r[2][1]
	return
}

// FromRoot is the inverse of ToRoot
func (m *Mesh) FromRoot(id int, rx, ry float64) (xi, eta float64) {
	el := &m.Elements[id]
	r := el.RefVerts
	if el.Shape == Quad {
		xi = 2*(rx-r[0][0])/(r[1][0]-r[0][0]) - 1
		eta = 2*(ry-r[0][1])/(r[3][1]-r[0][1]) - 1
		return
	}
	var (
		ax, ay = r[1][0] - r[0][0], r[1][1] - r[0][1]
		bx, by = r[2][0] - r[0][0], r[2][1] - r[0][1]
		dx, dy = rx - r[0][0], ry - r[0][1]
		det    = ax*by - bx*ay
	)
	s := (dx*by - bx*dy) / det
	t := (ax*dy - dx*ay) / det
	return 2*s - 1, 2*t - 1
}

// ToAncestor maps a reference point of element id into the reference coordinates of anc,
// which must share its root
func (m *Mesh) ToAncestor(id, anc int, xi, eta float64) (axi, aeta float64) {
	rx, ry := m.ToRoot(id, xi, eta)
	return m.FromRoot(anc, rx, ry)
}
