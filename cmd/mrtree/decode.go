// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package main

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hoang-dt/binomial-coding/internal/xyzio"
	"github.com/hoang-dt/binomial-coding/particle"
)

func newDecodeCmd() *cobra.Command {
	var (
		in             string
		out            string
		height         int
		accuracy       float64
		maxLevel       int
		maxNumBlocks   int
		maxSubsampling int
		byError        bool
	)
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Reconstruct a point cloud from a multiresolution archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd)
			if in == "" {
				return errors.New("missing --in")
			}
			if out == "" {
				return errors.New("missing --out")
			}

			dec, err := particle.Open(in)
			if err != nil {
				return err
			}
			defer dec.Close()

			if height > 0 && height < dec.Params.MaxHeight {
				dec.Params.MaxHeight = height
			} else if accuracy > 0 {
				dec.Params.MaxHeight = particle.ChooseMaxHeight(dec.Params, accuracy)
			}
			dec.Params.MaxParticleSubSampling = maxSubsampling

			mode := particle.ByLevel
			if byError {
				mode = particle.ByError
			}
			sched := particle.NewScheduler(dec, mode, maxLevel, maxNumBlocks, 0)
			if err := sched.Run(); err != nil {
				return err
			}

			lastLevel := maxLevel
			if lastLevel <= 0 || lastLevel >= dec.Params.NLevels {
				lastLevel = dec.Params.NLevels - 1
			}
			rng := rand.New(rand.NewSource(1))
			var all []particle.Particle
			for level := 0; level <= lastLevel; level++ {
				ps, err := particle.Reconstruct(dec, level, rng)
				if err != nil {
					return err
				}
				all = append(all, ps...)
			}

			xs := make([]xyzio.Particle, len(all))
			for i, p := range all {
				xs[i] = xyzio.Particle{Tag: p.Tag, Pos: [3]float64(p.Pos)}
			}
			if err := xyzio.WriteXYZ(out, xs); err != nil {
				return err
			}
			log.WithFields(map[string]interface{}{
				"particles":  len(all),
				"blocksRead": sched.BlocksRead,
				"bytesRead":  dec.BytesRead,
			}).Info("decode complete")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "input archive name prefix (its .idx file)")
	flags.StringVar(&out, "out", "", "output XYZ file")
	flags.IntVar(&height, "height", 0, "cap refinement at this tree height")
	flags.Float64Var(&accuracy, "accuracy", 0, "cap refinement at this per-axis accuracy")
	flags.IntVar(&maxLevel, "max-level", 0, "reconstruct levels 0 (coarsest) through this level (0 means all)")
	flags.IntVar(&maxNumBlocks, "max-num-blocks", 0, "stop after reading this many blocks (0 means unbounded)")
	flags.IntVar(&maxSubsampling, "max-subsampling", 0, "emit one representative particle per subtree at or below this count")
	flags.BoolVar(&byError, "by-error", false, "rank blocks by estimated refinement error instead of level order")
	return cmd
}
