// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hoang-dt/binomial-coding/internal/xyzio"
	"github.com/hoang-dt/binomial-coding/particle"
)

func newEncodeCmd() *cobra.Command {
	var (
		in       string
		name     string
		ndims    int
		nlevels  int
		block    int
		height   int
		accuracy float64
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Compress an XYZ point cloud into a multiresolution archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd)
			if in == "" {
				return errors.New("missing --in")
			}
			if name == "" {
				return errors.New("missing --name")
			}
			if height == 0 && accuracy == 0 {
				return errors.New("missing --height and --accuracy")
			}

			raw, err := xyzio.ReadXYZ(in)
			if err != nil {
				return err
			}
			particles := make([]particle.Particle, len(raw))
			for i, p := range raw {
				particles[i] = particle.Particle{Tag: p.Tag, Pos: particle.Vec3(p.Pos)}
			}

			params := &particle.Params{
				Name:      name,
				NDims:     ndims,
				NLevels:   nlevels,
				BlockBits: block,
				MaxHeight: height,
				Accuracy:  accuracy,
				Log:       log,
			}
			if err := particle.Encode(particles, params); err != nil {
				return err
			}
			log.WithFields(map[string]interface{}{
				"name":      name,
				"particles": len(particles),
			}).Info("encode complete")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "input XYZ file")
	flags.StringVar(&name, "name", "", "output archive name prefix")
	flags.IntVar(&ndims, "ndims", 3, "number of spatial dimensions (2 or 3)")
	flags.IntVar(&nlevels, "nlevels", 1, "number of resolution levels")
	flags.IntVar(&block, "block", 2, "block size in log2(nodes per block)")
	flags.IntVar(&height, "height", 0, "maximum tree height (mutually exclusive with --accuracy)")
	flags.Float64Var(&accuracy, "accuracy", 0, "target per-axis refinement accuracy (mutually exclusive with --height)")
	return cmd
}
