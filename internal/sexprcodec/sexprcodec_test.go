// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package sexprcodec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetaFileRoundTrip(t *testing.T) {
	in := Meta{
		Name:       "bunny",
		NParticles: 35947,
		NDims:      3,
		Dims:       [3]int{64, 64, 32},
		BBoxMin:    [3]float64{-1, -2, -3},
		BBoxMax:    [3]float64{1, 2, 3},
		VersionMaj: 1,
		VersionMin: 0,
		NLevels:    4,
		BlockBits:  10,
		Accuracy:   0.001,
		MaxHeight:  17,
	}

	path := filepath.Join(t.TempDir(), "bunny.idx")
	require.NoError(t, WriteMetaFile(path, in))

	out, err := ReadMetaFile(path)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestParseHandlesCommentsAndNesting(t *testing.T) {
	src := `(
  ; a leading comment
  (common (name "x") (particles 10))
  (format (resolutions 2))
)`
	v, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, List, v.Kind)
	require.Len(t, v.Items, 2)
}

func TestParseReportsLineNumberOnSyntaxError(t *testing.T) {
	_, err := Parse("(\n  (unterminated \"oops\n")
	require.Error(t, err)
	serr, ok := err.(*Error)
	require.True(t, ok, "want *Error, got %T", err)
	require.Equal(t, 2, serr.Line)
}

func TestReadMetaFileMissingFile(t *testing.T) {
	_, err := ReadMetaFile(filepath.Join(os.TempDir(), "does-not-exist-xyz.idx"))
	require.Error(t, err)
}
