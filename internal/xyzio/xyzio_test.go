// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package xyzio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	in := []Particle{
		{Tag: 'a', Pos: [3]float64{1, 2, 3}},
		{Tag: 'b', Pos: [3]float64{-1.5, 0, 100.25}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	out, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.Equal(t, in[i].Tag, out[i].Tag)
		require.InDelta(t, in[i].Pos[0], out[i].Pos[0], 1e-6)
		require.InDelta(t, in[i].Pos[1], out[i].Pos[1], 1e-6)
		require.InDelta(t, in[i].Pos[2], out[i].Pos[2], 1e-6)
	}
}

func TestReadEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	out, err := Read(&buf)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReadTruncatedFileErrors(t *testing.T) {
	_, err := Read(bytes.NewBufferString("3\ncomment\na 1 2 3\n"))
	require.Error(t, err)
}

func TestReadBadCountErrors(t *testing.T) {
	_, err := Read(bytes.NewBufferString("not-a-number\ncomment\n"))
	require.Error(t, err)
}
