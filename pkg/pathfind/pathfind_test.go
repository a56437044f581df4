package pathfind_test

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/pathfind"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

func manhattan(a, b geo.Cell) float64 { return float64(a.Manhattan(b)) }

// countingGrid returns a 4-directional neighbor function over a w x h grid
// and a pointer to the number of times it has been called.
func countingGrid(w, h int) (func(geo.Cell) []geo.Cell, *int) {
	calls := 0
	return func(c geo.Cell) []geo.Cell {
		calls++
		var out []geo.Cell
		for _, n := range c.Neighbors4() {
			if n.X >= 0 && n.Y >= 0 && n.X < w && n.Y < h {
				out = append(out, n)
			}
		}
		return out
	}, &calls
}

func gridPathfinder(w, h int) (*pathfind.Pathfinder[geo.Cell], *int) {
	neighbors, calls := countingGrid(w, h)
	pf := pathfind.New(pathfind.Graph[geo.Cell]{
		EdgeLength: manhattan,
		Neighbors:  neighbors,
		ID:         geo.Cell.String,
	}, pathfind.DefaultOptions(), zerolog.Nop())
	return pf, calls
}

func requireContiguous(t *testing.T, path []geo.Cell) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		require.Equal(t, 1, path[i-1].Manhattan(path[i]), "step %d: %v -> %v", i, path[i-1], path[i])
	}
}

func TestAStarOpenGrid(t *testing.T) {
	neighbors, _ := countingGrid(10, 10)
	path, ok := pathfind.AStar(geo.C(0, 0), geo.C(9, 9), manhattan, neighbors)
	require.True(t, ok)
	require.Len(t, path, 19)
	require.Equal(t, geo.C(0, 0), path[0])
	require.Equal(t, geo.C(9, 9), path[18])
	requireContiguous(t, path)
}

func TestAStarSameVertex(t *testing.T) {
	neighbors, calls := countingGrid(3, 3)
	path, ok := pathfind.AStar(geo.C(1, 1), geo.C(1, 1), manhattan, neighbors)
	require.True(t, ok)
	require.Equal(t, []geo.Cell{geo.C(1, 1)}, path)
	require.Zero(t, *calls)
}

func TestAStarUnreachable(t *testing.T) {
	// a dead-end column that never reaches x = 5
	neighbors := func(c geo.Cell) []geo.Cell {
		if c.Y >= 4 {
			return nil
		}
		return []geo.Cell{c.Add(0, 1)}
	}
	path, ok := pathfind.AStar(geo.C(0, 0), geo.C(5, 0), manhattan, neighbors)
	require.False(t, ok)
	require.Nil(t, path)
}

type graph struct {
	pos   []geo.Point
	edges [][]int
}

func (g graph) length(a, b int) float64 { return g.pos[a].Dist(g.pos[b]) }

func randomGraph(r *rand.Rand, n int, p float64) graph {
	g := graph{pos: make([]geo.Point, n), edges: make([][]int, n)}
	for i := range g.pos {
		g.pos[i] = geo.Pt(r.Float64()*20, r.Float64()*20)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r.Float64() < p {
				g.edges[i] = append(g.edges[i], j)
				g.edges[j] = append(g.edges[j], i)
			}
		}
	}
	return g
}

// floydWarshall returns all-pairs shortest distances, +Inf when disconnected.
func floydWarshall(g graph) [][]float64 {
	n := len(g.pos)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			d[i][j] = math.Inf(1)
		}
		d[i][i] = 0
		for _, j := range g.edges[i] {
			d[i][j] = g.length(i, j)
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if d[i][k]+d[k][j] < d[i][j] {
					d[i][j] = d[i][k] + d[k][j]
				}
			}
		}
	}
	return d
}

func TestAStarMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 40; round++ {
		n := 5 + r.IntN(46)
		g := randomGraph(r, n, 0.08+r.Float64()*0.15)
		want := floydWarshall(g)
		neighbors := func(v int) []int { return g.edges[v] }

		for q := 0; q < 10; q++ {
			from, to := r.IntN(n), r.IntN(n)
			path, ok := pathfind.AStar(from, to, g.length, neighbors)
			if math.IsInf(want[from][to], 1) {
				require.False(t, ok, "round %d: %d->%d should be unreachable", round, from, to)
				continue
			}
			require.True(t, ok, "round %d: %d->%d should be reachable", round, from, to)
			require.Equal(t, from, path[0])
			require.Equal(t, to, path[len(path)-1])
			for i := 1; i < len(path); i++ {
				require.Contains(t, g.edges[path[i-1]], path[i])
			}
			require.InDelta(t, want[from][to], pathfind.PathLength(path, g.length), 1e-9)
		}
	}
}

func TestFindPathSecondCallSkipsSearch(t *testing.T) {
	pf, calls := gridPathfinder(10, 10)
	first, ok := pf.FindPath(geo.C(0, 0), geo.C(9, 9))
	require.True(t, ok)
	require.Len(t, first, 19)
	afterFirst := *calls
	require.Positive(t, afterFirst)

	second, ok := pf.FindPath(geo.C(0, 0), geo.C(9, 9))
	require.True(t, ok)
	require.Equal(t, first, second)
	require.Equal(t, afterFirst, *calls)
	require.Equal(t, 1, pf.Searches())
}

func TestFindPathReverseIsCached(t *testing.T) {
	pf, calls := gridPathfinder(10, 10)
	forward, ok := pf.FindPath(geo.C(2, 1), geo.C(7, 8))
	require.True(t, ok)
	before := *calls

	backward, ok := pf.FindPath(geo.C(7, 8), geo.C(2, 1))
	require.True(t, ok)
	require.Equal(t, before, *calls)

	rev := slices.Clone(forward)
	slices.Reverse(rev)
	require.Equal(t, rev, backward)
}

func TestFindPathSubPathsAreCached(t *testing.T) {
	pf, _ := gridPathfinder(10, 10)
	full, ok := pf.FindPath(geo.C(0, 0), geo.C(9, 9))
	require.True(t, ok)

	sub, ok := pf.FindPath(full[3], full[12])
	require.True(t, ok)
	require.Equal(t, full[3:13], sub)

	back, ok := pf.FindPath(full[15], full[4])
	require.True(t, ok)
	require.Len(t, back, 12)
	require.Equal(t, full[15], back[0])
	require.Equal(t, full[4], back[11])
	require.Equal(t, 1, pf.Searches())
}

func TestFindPathExclusionSlotsAreIndependent(t *testing.T) {
	pf, _ := gridPathfinder(10, 10)
	var wall []geo.Cell
	for y := 0; y < 10; y++ {
		wall = append(wall, geo.C(5, y))
	}

	open, ok := pf.FindPath(geo.C(0, 0), geo.C(9, 9))
	require.True(t, ok)

	blocked, ok := pf.FindPath(geo.C(0, 0), geo.C(9, 9), wall...)
	require.False(t, ok)
	require.Nil(t, blocked)
	require.Equal(t, 2, pf.Searches())
	require.Equal(t, 2, pf.Cache().Slots())

	again, ok := pf.FindPath(geo.C(0, 0), geo.C(9, 9))
	require.True(t, ok)
	require.Equal(t, open, again)

	// exclusion order does not change the slot
	slices.Reverse(wall)
	_, ok = pf.FindPath(geo.C(9, 9), geo.C(0, 0), wall...)
	require.False(t, ok)
	require.Equal(t, 2, pf.Searches())
}

func TestFindPathDetoursAroundExclusions(t *testing.T) {
	pf, _ := gridPathfinder(5, 3)
	path, ok := pf.FindPath(geo.C(0, 1), geo.C(4, 1), geo.C(2, 1), geo.C(2, 2))
	require.True(t, ok)
	require.Contains(t, path, geo.C(2, 0))
	require.NotContains(t, path, geo.C(2, 1))
	requireContiguous(t, path)
}

func TestInvalidateForcesNewSearch(t *testing.T) {
	pf, _ := gridPathfinder(4, 4)
	_, ok := pf.FindPath(geo.C(0, 0), geo.C(3, 3))
	require.True(t, ok)
	require.Positive(t, pf.Cache().Len())

	pf.Invalidate()
	require.Zero(t, pf.Cache().Len())
	_, ok = pf.FindPath(geo.C(0, 0), geo.C(3, 3))
	require.True(t, ok)
	require.Equal(t, 2, pf.Searches())
}

func TestNormalizeCollapsesNoise(t *testing.T) {
	neighbors, _ := countingGrid(6, 6)
	type vertex struct{ X, Y float64 }
	toCell := func(v vertex) geo.Cell { return geo.Pt(v.X, v.Y).Cell() }
	pf := pathfind.New(pathfind.Graph[vertex]{
		EdgeLength: func(a, b vertex) float64 { return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y) },
		Neighbors: func(v vertex) []vertex {
			var out []vertex
			for _, n := range neighbors(toCell(v)) {
				out = append(out, vertex{float64(n.X), float64(n.Y)})
			}
			return out
		},
		Normalize: func(v vertex) vertex {
			c := toCell(v)
			return vertex{float64(c.X), float64(c.Y)}
		},
	}, pathfind.DefaultOptions(), zerolog.Nop())

	_, ok := pf.FindPath(vertex{0.2, 0.1}, vertex{5.3, 4.9})
	require.True(t, ok)
	_, ok = pf.FindPath(vertex{0.7, 0.4}, vertex{5.0, 4.01})
	require.True(t, ok)
	require.Equal(t, 1, pf.Searches())
}

func TestSlotKey(t *testing.T) {
	id := func(s string) string { return s }
	require.Equal(t, pathfind.NoExclusions, pathfind.SlotKey[string](nil, id))
	require.Equal(t, "a|b|c", pathfind.SlotKey([]string{"c", "a", "b", "a"}, id))
}

func TestCacheSaveSubPathsOverLimit(t *testing.T) {
	c := pathfind.NewCache[int]()
	c.SubPathLimit = 4
	c.SaveSubPaths("*", []int{0, 1, 2, 3, 4, 5})

	got, ok := c.Get("*", 0, 3)
	require.True(t, ok)
	require.Equal(t, []int{0, 1, 2, 3}, got)
	got, ok = c.Get("*", 5, 2)
	require.True(t, ok)
	require.Equal(t, []int{5, 4, 3, 2}, got)

	_, ok = c.Get("*", 1, 3)
	require.False(t, ok, "interior sub-paths are skipped above the limit")
}

func TestCacheZeroSubPathLimitKeepsDefault(t *testing.T) {
	c := pathfind.NewCache[int]()
	c.SubPathLimit = 0
	c.SaveSubPaths("*", []int{0, 1, 2, 3, 4, 5})

	got, ok := c.Get("*", 1, 3)
	require.True(t, ok, "a zero limit falls back to the default, not to no sub-paths")
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestCacheUnreachableMarker(t *testing.T) {
	c := pathfind.NewCache[int]()
	c.SaveUnreachable("x", 1, 2)
	path, ok := c.Get("x", 2, 1)
	require.True(t, ok)
	require.Nil(t, path)
	_, ok = c.Get("*", 1, 2)
	require.False(t, ok)
}

func TestCellPathfinderRespectsObstructions(t *testing.T) {
	g, err := terrain.ParseLayout([]string{
		"00000",
		"0###0",
		"00000",
	})
	require.NoError(t, err)
	pf := pathfind.NewCellPathfinder(g, pathfind.DefaultOptions(), zerolog.Nop())

	pts, ok := pf.FindPointPath(geo.Pt(0.4, 1.6), geo.Pt(4.9, 1.1))
	require.True(t, ok)
	require.Equal(t, geo.Pt(0.5, 1.5), pts[0])
	require.Equal(t, geo.Pt(4.5, 1.5), pts[len(pts)-1])

	dist, ok := pf.Distance(geo.Pt(0.5, 1.5), geo.Pt(4.5, 1.5))
	require.True(t, ok)
	// around the wall through the top row; no corner cutting past it
	require.InDelta(t, 6, dist, 1e-9)

	g.AddObstruction(9, []geo.Cell{geo.C(2, 0), geo.C(2, 2)})
	pf.Invalidate()
	_, ok = pf.FindPointPath(geo.Pt(0.5, 1.5), geo.Pt(4.5, 1.5))
	require.False(t, ok)
}
