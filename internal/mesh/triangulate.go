package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triangles is an indexed triangle mesh derived from a Model, ready for
// a renderer: shared vertices, fan-triangulated faces and smooth normals.
type Triangles struct {
	Vertices []Vertex `json:"vertices"`
	Normals  []Vertex `json:"normals"`
	Indices  [][3]int `json:"indices"`
}

// Triangulate converts each face of m into a triangle fan around its first
// vertex. Faces with fewer than three vertices produce no triangles. An
// empty model yields empty, non-nil slices.
func Triangulate(m Model) Triangles {
	index := make(map[Vertex]int)
	out := Triangles{Vertices: []Vertex{}, Indices: [][3]int{}}

	for _, f := range m.faces {
		for _, v := range f {
			if _, ok := index[v]; !ok {
				index[v] = len(out.Vertices)
				out.Vertices = append(out.Vertices, v)
			}
		}
	}

	for _, f := range m.faces {
		for i := 1; i+1 < len(f); i++ {
			out.Indices = append(out.Indices, [3]int{index[f[0]], index[f[i]], index[f[i+1]]})
		}
	}

	out.Normals = computeNormals(out.Vertices, out.Indices)

	return out
}

// computeNormals averages the unit face normals around every vertex.
// Degenerate and non-finite triangles contribute nothing.
func computeNormals(vertices []Vertex, indices [][3]int) []Vertex {
	sums := make([]r3.Vec, len(vertices))

	for _, tri := range indices {
		n, ok := faceNormal(toVec(vertices[tri[0]]), toVec(vertices[tri[1]]), toVec(vertices[tri[2]]))
		if !ok {
			continue
		}

		for _, idx := range tri {
			sums[idx] = r3.Add(sums[idx], n)
		}
	}

	normals := make([]Vertex, len(vertices))
	for i, s := range sums {
		if r3.Norm(s) == 0 {
			continue
		}
		u := r3.Unit(s)
		normals[i] = Vertex{X: u.X, Y: u.Y, Z: u.Z}
	}

	return normals
}

// faceNormal returns the unit normal of triangle v0 v1 v2. Edges are
// rescaled first so large or tiny coordinates neither overflow nor
// underflow the cross product.
func faceNormal(v0, v1, v2 r3.Vec) (r3.Vec, bool) {
	n := r3.Cross(rescale(r3.Sub(v1, v0)), rescale(r3.Sub(v2, v0)))
	if !finite(n) {
		return r3.Vec{}, false
	}

	norm := r3.Norm(n)
	if norm == 0 {
		return r3.Vec{}, false // degenerate triangle
	}

	return r3.Scale(1/norm, n), true
}

// rescale divides v by its largest absolute component.
func rescale(v r3.Vec) r3.Vec {
	m := math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
	if m == 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return v
	}

	return r3.Vec{X: v.X / m, Y: v.Y / m, Z: v.Z / m}
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}

	return true
}

func toVec(v Vertex) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}
