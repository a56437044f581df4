package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument is returned by helpers that cannot produce a meaningful
// result for their input, such as the center of an empty point set.
var ErrInvalidArgument = errors.New("geo: invalid argument")

// Center returns the arithmetic mean of points.
func Center(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, fmt.Errorf("center of empty point set: %w", ErrInvalidArgument)
	}
	var sum Point
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points))), nil
}

// BoundingBoxCenter returns the center of the axis-aligned bounding box of points.
func BoundingBoxCenter(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, fmt.Errorf("bounding box of empty point set: %w", ErrInvalidArgument)
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Point{(minX + maxX) / 2, (minY + maxY) / 2}, nil
}

// CellCenters converts cells to their center points.
func CellCenters(cells []Cell) []Point {
	out := make([]Point, len(cells))
	for i, c := range cells {
		out[i] = c.Center()
	}
	return out
}

// CenterOfCells is Center over the cell centers.
func CenterOfCells(cells []Cell) (Point, error) {
	return Center(CellCenters(cells))
}

// Nearest returns the index of the point in points closest to p, or -1.
func Nearest(p Point, points []Point) int {
	best, bestD := -1, math.Inf(1)
	for i, q := range points {
		if d := p.Dist2(q); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
