// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package particle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoang-dt/binomial-coding/internal/testutil"
)

// Every level's own spatial tree is independently numbered from node 1:
// for every level peeled off by a resolution split, BuildTree must record
// the shallowest entry at node 1, the rebased root, not at some node
// numbered relative to a global index.
func TestBuildTreeRebasesEachLevelToNodeOne(t *testing.T) {
	r := testutil.NewRand(99)
	pts := testutil.UniformParticles(r, 4000, 3)
	tags := testutil.Tags(len(pts))
	particles := make([]Particle, len(pts))
	for i := range pts {
		particles[i] = Particle{Tag: tags[i], Pos: Vec3(pts[i])}
	}

	params := &Params{NDims: 3, NLevels: 4}
	params.BBox = computeBoundingBox(particles)
	params.NParticles = int64(len(particles))
	params.ComputeGrid(particles)
	params.MaxHeight = params.BaseHeight

	tree := BuildTree(particles, params)

	for level := 1; level < params.NLevels; level++ {
		nodes := tree.Levels[level]
		if len(nodes) == 0 {
			continue
		}
		min := ^uint64(0)
		for idx := range nodes {
			if idx < min {
				min = idx
			}
		}
		require.Equal(t, uint64(1), min, "level %d's shallowest recorded node must be the rebased root", level)
	}
}

// The resolution tree's root must equal the total particle count, and
// every parent/child pair must sum correctly (no particles lost or
// duplicated across the resolution cascade).
func TestBuildTreeResolutionCounts(t *testing.T) {
	r := testutil.NewRand(5)
	pts := testutil.UniformParticles(r, 1000, 3)
	particles := make([]Particle, len(pts))
	for i := range pts {
		particles[i] = Particle{Tag: 'a', Pos: Vec3(pts[i])}
	}

	params := &Params{NDims: 3, NLevels: 3}
	params.BBox = computeBoundingBox(particles)
	params.NParticles = int64(len(particles))
	params.ComputeGrid(particles)
	params.MaxHeight = params.BaseHeight

	tree := BuildTree(particles, params)
	require.Equal(t, int64(len(particles)), tree.ResNodes[0])
	for i := 2; i <= 2*(params.NLevels-1); i += 2 {
		parent := tree.ResNodes[ResParent(i)]
		require.Equal(t, parent, tree.ResNodes[i]+tree.ResNodes[i-1])
	}
}
