// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package main

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hoang-dt/binomial-coding/internal/xyzio"
)

func newErrorCmd() *cobra.Command {
	var (
		in       string
		out      string
		dimsFlag []int
	)
	cmd := &cobra.Command{
		Use:   "error",
		Short: "Report the RMS reconstruction error between two XYZ point clouds",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd)
			if in == "" {
				return errors.New("missing --in")
			}
			if out == "" {
				return errors.New("missing --out")
			}
			if len(dimsFlag) != 3 || dimsFlag[0] <= 0 || dimsFlag[1] <= 0 || dimsFlag[2] <= 0 {
				return errors.New("missing --dims")
			}
			dims := [3]int{dimsFlag[0], dimsFlag[1], dimsFlag[2]}

			original, err := xyzio.ReadXYZ(in)
			if err != nil {
				return err
			}
			reconstructed, err := xyzio.ReadXYZ(out)
			if err != nil {
				return err
			}
			if len(original) == 0 {
				return errors.New("--in has no particles")
			}
			fmt.Printf("error = %f\n", rmsError(original, reconstructed, dims))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "original XYZ file")
	flags.StringVar(&out, "out", "", "reconstructed XYZ file")
	flags.IntSliceVar(&dimsFlag, "dims", nil, "grid dimensions x,y,z")
	return cmd
}

// rmsError snaps every original particle into a Dims3 grid cell, then for
// each reconstructed particle looks up whichever original particle
// shares its cell and accumulates squared distance, matching the
// reference implementation's grid-nearest-neighbor error metric.
func rmsError(original, reconstructed []xyzio.Particle, dims [3]int) float64 {
	minB, maxB := original[0].Pos, original[0].Pos
	for _, p := range original[1:] {
		for d := 0; d < 3; d++ {
			if p.Pos[d] < minB[d] {
				minB[d] = p.Pos[d]
			}
			if p.Pos[d] > maxB[d] {
				maxB[d] = p.Pos[d]
			}
		}
	}
	var w [3]float64
	for d := 0; d < 3; d++ {
		w[d] = (maxB[d] - minB[d]) / float64(dims[d])
	}

	cellOf := func(pos [3]float64) int {
		var c [3]int
		for d := 0; d < 3; d++ {
			idx := int((pos[d] - minB[d]) / w[d])
			if idx > dims[d]-1 {
				idx = dims[d] - 1
			}
			if idx < 0 {
				idx = 0
			}
			c[d] = idx
		}
		return c[2]*(dims[0]*dims[1]) + c[1]*dims[0] + c[0]
	}

	grid := make([][3]float64, dims[0]*dims[1]*dims[2])
	for _, p := range original {
		grid[cellOf(p.Pos)] = p.Pos
	}

	var sum float64
	for _, p := range reconstructed {
		ref := grid[cellOf(p.Pos)]
		for d := 0; d < 3; d++ {
			diff := ref[d] - p.Pos[d]
			sum += diff * diff
		}
	}
	if len(reconstructed) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(reconstructed)))
}
