// Package workload provides a synthetic, instrumented benchmark workload
// for exercising the profiler: a naive matrix multiplication whose three
// functions have deliberately skewed call profiles. MultiplyMatrices makes
// few long calls, SumRow many medium calls and Multiply very many very
// short ones.
package workload

import (
	"math/rand"

	"github.com/maxgio92/adaprof/pkg/frame"
	"github.com/maxgio92/adaprof/pkg/profile"
)

const (
	FuncMultiplyMatrices = "workload.MultiplyMatrices"
	FuncSumRow           = "workload.SumRow"
	FuncMultiply         = "workload.Multiply"
)

// MatMul is an instrumented matrix multiplication workload bound to one
// profiling session.
type MatMul struct {
	sampler *profile.Sampler
	g       *profile.GState

	idMatrices frame.FuncID
	idSumRow   frame.FuncID
	idMultiply frame.FuncID

	a, b [][]float64
}

// NewMatMul generates two random matrices (n×m and m×p) and interns the
// workload function identifiers.
func NewMatMul(sampler *profile.Sampler, interner *frame.Interner, n, m, p int) *MatMul {
	w := &MatMul{
		sampler:    sampler,
		g:          sampler.NewGState(),
		idMatrices: interner.Intern(FuncMultiplyMatrices, "matmul.go", 0),
		idSumRow:   interner.Intern(FuncSumRow, "matmul.go", 0),
		idMultiply: interner.Intern(FuncMultiply, "matmul.go", 0),
	}
	w.a = randomMatrix(n, m)
	w.b = randomMatrix(m, p)

	return w
}

// Matrices returns the generated input matrices.
func (w *MatMul) Matrices() ([][]float64, [][]float64) {
	return w.a, w.b
}

// Run multiplies the matrices rounds times.
func (w *MatMul) Run(rounds int) [][]float64 {
	var c [][]float64
	for i := 0; i < rounds; i++ {
		c = w.MultiplyMatrices(w.a, w.b)
	}

	return c
}

// MultiplyMatrices computes a×b.
func (w *MatMul) MultiplyMatrices(a, b [][]float64) [][]float64 {
	w.sampler.OnCall(w.g, w.idMatrices)
	defer w.sampler.OnReturn(w.g, w.idMatrices)

	n := len(a)
	m := len(b)
	p := len(b[0])

	c := make([][]float64, n)
	for i := 0; i < n; i++ {
		c[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			c[i][j] = w.SumRow(a, b, i, j, m)
		}
	}

	return c
}

// SumRow accumulates one output cell.
func (w *MatMul) SumRow(a, b [][]float64, i, j, m int) float64 {
	w.sampler.OnCall(w.g, w.idSumRow)
	defer w.sampler.OnReturn(w.g, w.idSumRow)

	acc := 0.0
	for k := 0; k < m; k++ {
		acc += w.Multiply(a[i][k], b[k][j])
	}

	return acc
}

// Multiply multiplies two numbers.
func (w *MatMul) Multiply(x, y float64) float64 {
	w.sampler.OnCall(w.g, w.idMultiply)
	defer w.sampler.OnReturn(w.g, w.idMultiply)

	return x * y
}

func randomMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rand.Float64()
		}
	}

	return m
}
