package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorArithmetic(t *testing.T) {
	a := NewVector(1, 2)
	b := NewVector(3, -4)

	assert.Equal(t, NewVector(4, -2), a.Add(b))
	assert.Equal(t, NewVector(-2, 6), a.Sub(b))
	assert.Equal(t, NewVector(2.5, 5), a.Scale(2.5))
	assert.Equal(t, 5.0, b.Length())
	assert.Equal(t, 0.0, Vector{}.Length())
	assert.Equal(t, -5.0, a.Dot(b))
	assert.Equal(t, -10.0, a.Cross(b))
	assert.True(t, a.Equal(NewVector(1, 2)))
	assert.False(t, a.Equal(b))
}

func TestFromAngle(t *testing.T) {
	tests := []struct {
		name  string
		theta float64
		want  Vector
	}{
		{"zero", 0, NewVector(1, 0)},
		{"quarter", math.Pi / 2, NewVector(0, 1)},
		{"half", math.Pi, NewVector(-1, 0)},
		{"negative quarter", -math.Pi / 2, NewVector(0, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAngle(tt.theta)
			assert.InDelta(t, tt.want.X, got.X, 1e-12)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-12)
			assert.InDelta(t, 1.0, got.Length(), 1e-12)
		})
	}
}

func TestVectorRotateAndAngle(t *testing.T) {
	v := NewVector(2, 0).Rotate(math.Pi / 2)
	assert.InDelta(t, 0.0, v.X, 1e-12)
	assert.InDelta(t, 2.0, v.Y, 1e-12)
	assert.InDelta(t, math.Pi/2, v.Angle(), 1e-12)
}

func TestVectorIsFinite(t *testing.T) {
	assert.True(t, NewVector(1, -1).IsFinite())
	assert.False(t, NewVector(math.NaN(), 0).IsFinite())
	assert.False(t, NewVector(0, math.Inf(-1)).IsFinite())
}

func TestPointDistanceIsFromOrigin(t *testing.T) {
	p := NewPoint(3, 4)
	assert.Equal(t, 5.0, p.Distance())
	assert.True(t, p.Equal(PointFromVector(NewVector(3, 4))))
	assert.Equal(t, "Point(3, 4)", p.String())

	// Inter-point distance requires subtracting first.
	q := NewPoint(6, 8)
	assert.Equal(t, 5.0, q.Pos.Sub(p.Pos).Length())
}

func TestLineIntersect(t *testing.T) {
	ray := NewLine(NewPoint(0, 0), NewPoint(10, 0))

	t.Run("crossing", func(t *testing.T) {
		wall := NewLine(NewPoint(4, -1), NewPoint(4, 1))
		p, param, ok := ray.Intersect(wall)
		require.True(t, ok)
		assert.InDelta(t, 0.4, param, 1e-12)
		assert.InDelta(t, 4.0, p.Pos.X, 1e-12)
		assert.InDelta(t, 0.0, p.Pos.Y, 1e-12)
	})

	t.Run("beyond end", func(t *testing.T) {
		wall := NewLine(NewPoint(12, -1), NewPoint(12, 1))
		_, _, ok := ray.Intersect(wall)
		assert.False(t, ok)
	})

	t.Run("misses wall extent", func(t *testing.T) {
		wall := NewLine(NewPoint(4, 1), NewPoint(4, 3))
		_, _, ok := ray.Intersect(wall)
		assert.False(t, ok)
	})

	t.Run("parallel", func(t *testing.T) {
		wall := NewLine(NewPoint(0, 1), NewPoint(10, 1))
		_, _, ok := ray.Intersect(wall)
		assert.False(t, ok)
	})
}

func TestLineAtAndLength(t *testing.T) {
	l := NewLine(NewPoint(1, 1), NewPoint(4, 5))
	assert.Equal(t, 5.0, l.Length())
	assert.True(t, l.At(0).Equal(l.Start))
	assert.True(t, l.At(1).Equal(l.End))
}
