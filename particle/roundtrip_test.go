// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoang-dt/binomial-coding/internal/testutil"
)

func makeParticles(r *testutil.Rand, n, ndims int) []Particle {
	pts := testutil.UniformParticles(r, n, ndims)
	tags := testutil.Tags(n)
	out := make([]Particle, n)
	for i := range pts {
		out[i] = Particle{Tag: tags[i], Pos: Vec3(pts[i])}
	}
	return out
}

// An unbudgeted decode (every block fetched) must reconstruct exactly
// NParticles particles, split across every level's local tree.
func TestEncodeDecodeRoundTripParticleCount(t *testing.T) {
	cases := []struct {
		name    string
		n       int
		nlevels int
		block   int
	}{
		{"singleLevel", 500, 1, 2},
		{"multiLevel", 2000, 4, 3},
		{"tinyBlocks", 300, 3, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testutil.NewRand(42)
			particles := makeParticles(r, tc.n, 3)

			dir := t.TempDir()
			name := filepath.Join(dir, "archive")
			params := &Params{
				Name:      name,
				NDims:     3,
				NLevels:   tc.nlevels,
				BlockBits: tc.block,
			}
			require.NoError(t, Encode(particles, params))

			dec, err := Open(name)
			require.NoError(t, err)
			defer dec.Close()

			sched := NewScheduler(dec, ByLevel, 0, 0, 0)
			require.NoError(t, sched.Run())

			rng := rand.New(rand.NewSource(1))
			var total int
			for level := 0; level < dec.Params.NLevels; level++ {
				ps, err := Reconstruct(dec, level, rng)
				require.NoError(t, err)
				total += len(ps)
			}
			require.Equal(t, tc.n, total)
		})
	}
}

// With no accuracy/height configured, MaxHeight defaults to BaseHeight:
// no refinement bits are written, and every reconstructed particle must
// land inside its own base-grid voxel.
func TestReconstructWithoutRefinementStaysInVoxel(t *testing.T) {
	r := testutil.NewRand(7)
	particles := makeParticles(r, 400, 3)

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{Name: name, NDims: 3, NLevels: 2, BlockBits: 2}
	require.NoError(t, Encode(particles, params))

	dec, err := Open(name)
	require.NoError(t, err)
	defer dec.Close()

	sched := NewScheduler(dec, ByError, 0, 0, 0)
	require.NoError(t, sched.Run())

	w := dec.Params.CellSize()
	dims := dec.Params.BaseGrid().Dims
	cellOf := func(p Vec3) [3]int64 {
		var c [3]int64
		for d := 0; d < 3; d++ {
			c[d] = int64((p[d] - dec.Params.BBox.Min[d]) / w[d])
			if c[d] > int64(dims[d])-1 {
				c[d] = int64(dims[d]) - 1
			}
		}
		return c
	}
	occupied := make(map[[3]int64]bool, len(particles))
	for _, p := range particles {
		occupied[cellOf(p.Pos)] = true
	}

	rng := rand.New(rand.NewSource(2))
	for level := 0; level < dec.Params.NLevels; level++ {
		ps, err := Reconstruct(dec, level, rng)
		require.NoError(t, err)
		for _, p := range ps {
			require.True(t, dec.Params.BBox.Min[0] <= p.Pos[0] && p.Pos[0] <= dec.Params.BBox.Max[0])
			require.True(t, occupied[cellOf(p.Pos)], "particle %v is outside every input particle's base-grid voxel", p.Pos)
		}
	}
}

// decodeAll runs sched to completion (or exhaustion of its budget) and
// reconstructs every level, returning the total particle count and the
// block count the scheduler actually read.
func decodeAll(t *testing.T, name string, nlevels int, sched *Scheduler, seed int64) int {
	t.Helper()
	require.NoError(t, sched.Run())
	rng := rand.New(rand.NewSource(seed))
	total := 0
	for level := 0; level < nlevels; level++ {
		ps, err := Reconstruct(sched.dec, level, rng)
		require.NoError(t, err)
		total += len(ps)
	}
	return total
}

// A budget-limited decode must only ever draw on the blocks the
// scheduler actually fetched: a 1-block budget must produce a strictly
// coarser (fewer-particle) result than an unbounded decode of the same
// archive, never the full cloud. This is the regression test for the
// bug where GetNode silently re-fetched whatever Reconstruct needed,
// making MaxNBlocks a no-op.
func TestScheduler_BudgetLimited(t *testing.T) {
	r := testutil.NewRand(11)
	particles := makeParticles(r, 5000, 3)

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{Name: name, NDims: 3, NLevels: 3, BlockBits: 2}
	require.NoError(t, Encode(particles, params))

	limited, err := Open(name)
	require.NoError(t, err)
	defer limited.Close()
	limitedSched := NewScheduler(limited, ByLevel, 0, 1, 0)
	limitedTotal := decodeAll(t, name, params.NLevels, limitedSched, 3)
	require.LessOrEqual(t, limitedSched.BlocksRead, 1)
	require.Less(t, limitedTotal, len(particles))

	full, err := Open(name)
	require.NoError(t, err)
	defer full.Close()
	fullTotal := decodeAll(t, name, params.NLevels, NewScheduler(full, ByLevel, 0, 0, 0), 3)
	require.Equal(t, len(particles), fullTotal)

	require.Less(t, limitedTotal, fullTotal)
}

// With an accuracy target that forces MaxHeight above BaseHeight,
// refinement bits are written and consumed, and the reconstructed count
// must still match NParticles exactly under a full-budget decode.
func TestEncodeDecodeRoundTripWithRefinement(t *testing.T) {
	r := testutil.NewRand(17)
	particles := makeParticles(r, 1200, 3)

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{
		Name:      name,
		NDims:     3,
		NLevels:   2,
		BlockBits: 2,
		Accuracy:  1e-4,
	}
	require.NoError(t, Encode(particles, params))
	require.Greater(t, params.MaxHeight, params.BaseHeight)

	dec, err := Open(name)
	require.NoError(t, err)
	defer dec.Close()

	sched := NewScheduler(dec, ByError, 0, 0, 0)
	require.NoError(t, sched.Run())

	rng := rand.New(rand.NewSource(4))
	total := 0
	for level := 0; level < dec.Params.NLevels; level++ {
		ps, err := Reconstruct(dec, level, rng)
		require.NoError(t, err)
		total += len(ps)
	}
	require.Equal(t, len(particles), total)
}

// Scenario A: a single level, single block, four particles each in
// their own octant of a 2x2x2 base grid. A full-budget decode must
// recover exactly those four particles, one per octant.
func TestScenarioA_SingleBlockExactOctants(t *testing.T) {
	particles := []Particle{
		{Pos: Vec3{0.25, 0.25, 0.25}},
		{Pos: Vec3{0.25, 0.25, 0.75}},
		{Pos: Vec3{0.75, 0.25, 0.25}},
		{Pos: Vec3{0.75, 0.75, 0.75}},
	}

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{Name: name, NDims: 3, NLevels: 1, BlockBits: 3}
	require.NoError(t, Encode(particles, params))
	require.Equal(t, params.BaseHeight, params.MaxHeight)

	dec, err := Open(name)
	require.NoError(t, err)
	defer dec.Close()

	sched := NewScheduler(dec, ByLevel, 0, 0, 0)
	require.NoError(t, sched.Run())
	require.LessOrEqual(t, sched.BlocksRead, 1)

	rng := rand.New(rand.NewSource(1))
	out, err := Reconstruct(dec, 0, rng)
	require.NoError(t, err)
	require.Equal(t, 4, len(out))

	octant := func(p Vec3) [3]bool {
		return [3]bool{p[0] >= 0.5, p[1] >= 0.5, p[2] >= 0.5}
	}
	want := map[[3]bool]bool{}
	for _, p := range particles {
		want[octant(p.Pos)] = true
	}
	for _, p := range out {
		require.True(t, want[octant(p.Pos)], "unexpected octant for %v", p.Pos)
	}
}

// Scenario B: a 1024-particle uniform cloud, decoded once with a
// 1-block budget and once unbounded. The level roots read from the
// resolution file must add up to the full count, the 1-block decode must stay strictly below it, and
// the unbounded decode must recover every particle.
func TestScenarioB_ResolutionRootAndBudgetedDecode(t *testing.T) {
	r := testutil.NewRand(21)
	particles := makeParticles(r, 1024, 3)

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{Name: name, NDims: 3, NLevels: 3, BlockBits: 4}
	require.NoError(t, Encode(particles, params))

	rootDec, err := Open(name)
	require.NoError(t, err)
	defer rootDec.Close()
	var root int64
	for level := 0; level < params.NLevels; level++ {
		n, known, err := rootDec.GetNode(level, 1)
		require.NoError(t, err)
		require.True(t, known)
		root += n
	}
	require.Equal(t, int64(1024), root)

	limited, err := Open(name)
	require.NoError(t, err)
	defer limited.Close()
	limitedTotal := decodeAll(t, name, params.NLevels, NewScheduler(limited, ByLevel, 0, 1, 0), 8)
	require.Less(t, limitedTotal, 1024)

	full, err := Open(name)
	require.NoError(t, err)
	defer full.Close()
	fullTotal := decodeAll(t, name, params.NLevels, NewScheduler(full, ByLevel, 0, 0, 0), 8)
	require.Equal(t, 1024, fullTotal)
}

// Scenario C: encoding with an explicit accuracy auto-selects MaxHeight
// as the smallest height at which the largest bounding-box extent, halved
// once per height above BaseHeight, falls at or below that accuracy, and a full-budget decode's RMSE against the
// input stays within it.
func TestScenarioC_AccuracyAutoHeightAndRMSE(t *testing.T) {
	const accuracy = 0.5
	var particles []Particle
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			for z := 0; z < 4; z++ {
				particles = append(particles, Particle{Pos: Vec3{
					float64(x) + 0.5, float64(y) + 0.5, float64(z) + 0.5,
				}})
			}
		}
	}

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{Name: name, NDims: 3, NLevels: 1, BlockBits: 3, Accuracy: accuracy}
	require.NoError(t, Encode(particles, params))

	bbox := computeBoundingBox(particles)
	wantHeight := params.BaseHeight
	ext := bbox.Extent()
	w := math.Max(ext[0], math.Max(ext[1], ext[2]))
	for w > accuracy {
		wantHeight++
		w *= 0.5
	}
	require.Equal(t, wantHeight, params.MaxHeight)

	dec, err := Open(name)
	require.NoError(t, err)
	defer dec.Close()
	sched := NewScheduler(dec, ByError, 0, 0, 0)
	require.NoError(t, sched.Run())

	rng := rand.New(rand.NewSource(9))
	out, err := Reconstruct(dec, 0, rng)
	require.NoError(t, err)
	require.Equal(t, len(particles), len(out))

	nearest := func(p Vec3) float64 {
		best := math.Inf(1)
		for _, q := range particles {
			d := p.Sub(q.Pos)
			dist := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
			if dist < best {
				best = dist
			}
		}
		return best
	}
	var sumSq float64
	for _, p := range out {
		d := nearest(p.Pos)
		sumSq += d * d
	}
	rmse := math.Sqrt(sumSq / float64(len(out)))
	require.LessOrEqual(t, rmse, accuracy*math.Sqrt(float64(params.NDims)))
}

// Scenario D: two decodes of the same archive with MaxNBlocks=k and
// k+1 must never regress — the (k+1)-block decode must recover at
// least as many particles as the k-block decode (monotone refinement).
func TestScenarioD_MonotoneRefinementAcrossBudgets(t *testing.T) {
	r := testutil.NewRand(33)
	particles := makeParticles(r, 4000, 3)

	dir := t.TempDir()
	name := filepath.Join(dir, "archive")
	params := &Params{Name: name, NDims: 3, NLevels: 3, BlockBits: 2}
	require.NoError(t, Encode(particles, params))

	var prevTotal int
	for k := 1; k <= 4; k++ {
		dec, err := Open(name)
		require.NoError(t, err)
		total := decodeAll(t, name, params.NLevels, NewScheduler(dec, ByLevel, 0, k, 0), int64(100+k))
		require.NoError(t, dec.Close())
		require.GreaterOrEqual(t, total, prevTotal, "budget %d regressed below budget %d", k, k-1)
		prevTotal = total
	}
}
