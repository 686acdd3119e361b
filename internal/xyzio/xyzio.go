// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package xyzio reads and writes the plain-text XYZ point-cloud format:
// a particle count, a free-form comment line, then one line per particle
// of the form "<tag> <x> <y> <z>". The leading tag byte is opaque to this
// package and round-trips unchanged.
package xyzio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Particle is one XYZ record: an opaque tag byte plus a 3D position. 2D
// callers leave Pos[2] at 0.
type Particle struct {
	Tag byte
	Pos [3]float64
}

// ReadXYZ parses the XYZ file at path in full.
func ReadXYZ(path string) ([]Particle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "xyzio: open")
	}
	defer f.Close()
	return Read(f)
}

// Read parses an XYZ stream from r.
func Read(r io.Reader) ([]Particle, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil, errors.Wrap(firstErr(sc.Err(), io.ErrUnexpectedEOF), "xyzio: read particle count")
	}
	var n int
	if _, err := fmt.Sscanf(sc.Text(), "%d", &n); err != nil {
		return nil, errors.Wrapf(err, "xyzio: parse particle count %q", sc.Text())
	}
	if n < 0 {
		return nil, errors.Errorf("xyzio: negative particle count %d", n)
	}

	if !sc.Scan() {
		return nil, errors.Wrap(firstErr(sc.Err(), io.ErrUnexpectedEOF), "xyzio: read comment line")
	}

	particles := make([]Particle, n)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, errors.Wrapf(firstErr(sc.Err(), io.ErrUnexpectedEOF), "xyzio: read particle %d", i)
		}
		var p Particle
		var tag string
		if _, err := fmt.Sscanf(sc.Text(), "%s %f %f %f", &tag, &p.Pos[0], &p.Pos[1], &p.Pos[2]); err != nil {
			return nil, errors.Wrapf(err, "xyzio: parse particle %d %q", i, sc.Text())
		}
		if len(tag) == 0 {
			return nil, errors.Errorf("xyzio: particle %d has an empty tag", i)
		}
		p.Tag = tag[0]
		particles[i] = p
	}
	return particles, nil
}

// WriteXYZ writes particles to path in XYZ format, truncating any
// existing file.
func WriteXYZ(path string, particles []Particle) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "xyzio: create")
	}
	defer f.Close()
	if err := Write(f, particles); err != nil {
		return err
	}
	return f.Close()
}

// Write writes particles to w in XYZ format.
func Write(w io.Writer, particles []Particle) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", len(particles)); err != nil {
		return errors.Wrap(err, "xyzio: write particle count")
	}
	if _, err := fmt.Fprintln(bw, "generated by binomial-coding"); err != nil {
		return errors.Wrap(err, "xyzio: write comment line")
	}
	for i, p := range particles {
		if _, err := fmt.Fprintf(bw, "%c %.6f %.6f %.6f\n", p.Tag, p.Pos[0], p.Pos[1], p.Pos[2]); err != nil {
			return errors.Wrapf(err, "xyzio: write particle %d", i)
		}
	}
	return errors.Wrap(bw.Flush(), "xyzio: flush")
}

func firstErr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
