// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package sexprcodec

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Meta is the archive's persisted metadata: everything recorded in the
// ".idx" file alongside the per-level block files.
type Meta struct {
	Name        string
	NParticles  int64
	NDims       int
	Dims        [3]int
	BBoxMin     [3]float64
	BBoxMax     [3]float64
	VersionMaj  int
	VersionMin  int
	NLevels     int
	BlockBits   int
	Accuracy    float64
	MaxHeight   int
}

// ReadMetaFile parses the ".idx" file at path.
func ReadMetaFile(path string) (Meta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, errors.Wrap(err, "sexprcodec: read meta file")
	}
	root, err := Parse(string(b))
	if err != nil {
		return Meta{}, errors.Wrap(err, "sexprcodec: parse meta file")
	}
	return metaFromValue(root)
}

func metaFromValue(root Value) (Meta, error) {
	var m Meta
	if root.Kind != List {
		return m, errors.New("sexprcodec: top level must be a list")
	}
	for _, section := range root.Items {
		if section.Kind != List || len(section.Items) == 0 {
			continue
		}
		head := section.Items[0]
		if head.Kind != Symbol {
			continue
		}
		if err := applyFields(&m, section.Items[1:]); err != nil {
			return m, err
		}
		_ = head
	}
	return m, nil
}

func applyFields(m *Meta, fields []Value) error {
	for _, f := range fields {
		if f.Kind != List || len(f.Items) == 0 || f.Items[0].Kind != Symbol {
			continue
		}
		key := f.Items[0].Str
		args := f.Items[1:]
		if err := applyField(m, key, args); err != nil {
			return err
		}
	}
	return nil
}

func applyField(m *Meta, key string, args []Value) error {
	need := func(n int) error {
		if len(args) < n {
			return errors.Errorf("sexprcodec: key %q needs %d argument(s)", key, n)
		}
		return nil
	}
	switch key {
	case "name":
		if err := need(1); err != nil {
			return err
		}
		m.Name = args[0].Str
	case "particles":
		if err := need(1); err != nil {
			return err
		}
		m.NParticles = args[0].Int
	case "dimensions":
		if err := need(1); err != nil {
			return err
		}
		m.NDims = int(args[0].Int)
	case "grid":
		if err := need(3); err != nil {
			return err
		}
		m.Dims = [3]int{int(args[0].Int), int(args[1].Int), int(args[2].Int)}
	case "bounding-box":
		if err := need(6); err != nil {
			return err
		}
		m.BBoxMin = [3]float64{asFloat(args[0]), asFloat(args[1]), asFloat(args[2])}
		m.BBoxMax = [3]float64{asFloat(args[3]), asFloat(args[4]), asFloat(args[5])}
	case "version":
		if err := need(2); err != nil {
			return err
		}
		m.VersionMaj = int(args[0].Int)
		m.VersionMin = int(args[1].Int)
	case "resolutions":
		if err := need(1); err != nil {
			return err
		}
		m.NLevels = int(args[0].Int)
	case "block-bits":
		if err := need(1); err != nil {
			return err
		}
		m.BlockBits = int(args[0].Int)
	case "accuracy":
		if err := need(1); err != nil {
			return err
		}
		m.Accuracy = asFloat(args[0])
	case "height":
		if err := need(1); err != nil {
			return err
		}
		m.MaxHeight = int(args[0].Int)
	}
	return nil
}

func asFloat(v Value) float64 {
	if v.Kind == Int {
		return float64(v.Int)
	}
	return v.Float
}

// WriteMetaFile writes m to path as a ".idx" file with the "common" and
// "format" sections the reader expects.
func WriteMetaFile(path string, m Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "sexprcodec: create meta file")
	}
	defer f.Close()

	root := Value{Kind: List, Items: []Value{
		{Kind: List, Items: []Value{
			sym("common"),
			kv("name", Value{Kind: String, Str: m.Name}),
			kv("particles", Value{Kind: Int, Int: m.NParticles}),
			kv("dimensions", Value{Kind: Int, Int: int64(m.NDims)}),
			{Kind: List, Items: []Value{sym("grid"), intv(m.Dims[0]), intv(m.Dims[1]), intv(m.Dims[2])}},
			{Kind: List, Items: []Value{
				sym("bounding-box"),
				floatv(m.BBoxMin[0]), floatv(m.BBoxMin[1]), floatv(m.BBoxMin[2]),
				floatv(m.BBoxMax[0]), floatv(m.BBoxMax[1]), floatv(m.BBoxMax[2]),
			}},
		}},
		{Kind: List, Items: []Value{
			sym("format"),
			{Kind: List, Items: []Value{sym("version"), intv(m.VersionMaj), intv(m.VersionMin)}},
			kv("resolutions", Value{Kind: Int, Int: int64(m.NLevels)}),
			kv("block-bits", Value{Kind: Int, Int: int64(m.BlockBits)}),
			kv("accuracy", floatv(m.Accuracy)),
			kv("height", Value{Kind: Int, Int: int64(m.MaxHeight)}),
		}},
	}}

	var sb strings.Builder
	Write(&sb, root, 0)
	sb.WriteString("\n")
	if _, err := f.WriteString(sb.String()); err != nil {
		return errors.Wrap(err, "sexprcodec: write meta file")
	}
	return f.Close()
}

func sym(s string) Value           { return Value{Kind: Symbol, Str: s} }
func intv(i int) Value             { return Value{Kind: Int, Int: int64(i)} }
func floatv(f float64) Value       { return Value{Kind: Float, Float: f} }
func kv(key string, v Value) Value { return Value{Kind: List, Items: []Value{sym(key), v}} }
