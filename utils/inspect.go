package utils

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/voxelsplace/svo/api"
)

// Summary describes the tree stored in an .svob file.
type Summary struct {
	Parents   uint32
	Leaves    uint32
	Scale     uint32
	Min       [3]float32
	Materials map[uint16]uint64 // material -> unit cells covered
}

// RunInspect validates an .svob container and logs its header and material
// histogram.
func RunInspect(inPath string) (*Summary, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return nil, err
	}
	f, err := api.SVOBToFlat(data)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		Parents:   f.ParentCount,
		Leaves:    f.LeafCount,
		Scale:     f.Scale,
		Min:       [3]float32(f.Min),
		Materials: map[uint16]uint64{},
	}
	for _, l := range f.Leaves {
		e := uint64(l.Scale)
		s.Materials[l.Material] += e * e * e
	}
	log.WithFields(log.Fields{
		"path":    inPath,
		"parents": s.Parents,
		"leaves":  s.Leaves,
		"scale":   s.Scale,
		"min":     s.Min,
	}).Info("octree")
	for m, cells := range s.Materials {
		log.WithFields(log.Fields{"material": m, "cells": cells}).Info("material")
	}
	return s, nil
}
