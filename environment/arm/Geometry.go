package arm

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Wall is a straight, thick obstacle between two points
type Wall struct {
	From, To  r2.Vec
	Thickness float64
}

// Blocks returns whether any link of the arm, in the configuration
// given by joint positions, touches the wall.
func (w Wall) Blocks(positions []r2.Vec) bool {
	for i := 1; i < len(positions); i++ {
		d := SegmentDistance(positions[i-1], positions[i], w.From, w.To)
		if d <= w.Thickness/2 {
			return true
		}
	}
	return false
}

// PointSegmentDistance returns the distance from p to the segment ab
func PointSegmentDistance(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	lengthSq := r2.Dot(ab, ab)
	if lengthSq == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := r2.Dot(r2.Sub(p, a), ab) / lengthSq
	t = math.Max(0, math.Min(1, t))
	closest := r2.Add(a, r2.Scale(t, ab))
	return r2.Norm(r2.Sub(p, closest))
}

// SegmentDistance returns the shortest distance between the segments
// p1p2 and q1q2, which is zero if they intersect.
func SegmentDistance(p1, p2, q1, q2 r2.Vec) float64 {
	if segmentsIntersect(p1, p2, q1, q2) {
		return 0
	}
	return math.Min(
		math.Min(PointSegmentDistance(p1, q1, q2),
			PointSegmentDistance(p2, q1, q2)),
		math.Min(PointSegmentDistance(q1, p1, p2),
			PointSegmentDistance(q2, p1, p2)),
	)
}

// segmentsIntersect returns whether the segments p1p2 and q1q2
// properly cross each other
func segmentsIntersect(p1, p2, q1, q2 r2.Vec) bool {
	d1 := r2.Cross(r2.Sub(q2, q1), r2.Sub(p1, q1))
	d2 := r2.Cross(r2.Sub(q2, q1), r2.Sub(p2, q1))
	d3 := r2.Cross(r2.Sub(p2, p1), r2.Sub(q1, p1))
	d4 := r2.Cross(r2.Sub(p2, p1), r2.Sub(q2, p1))
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
