package utils

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/voxelsplace/svo/api"
	"github.com/voxelsplace/svo/svo"
)

// RunVOX2SVOB builds an octree from an .svox stream and writes its flattened
// buffer to an .svob container.
func RunVOX2SVOB(inPath, outPath string, comp svo.Compression) error {
	stream, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	start := time.Now()
	data, err := api.VoxelStreamToSVOB(stream, comp)
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"path":        outPath,
		"bytes":       len(data),
		"compression": comp,
		"ms":          time.Since(start).Milliseconds(),
	}).Info(".svob saved")
	return nil
}

// RunVOX2RAW builds an octree from an .svox stream and writes the bare
// flattened buffer in host byte order, for direct GPU upload.
func RunVOX2RAW(inPath, outPath string) error {
	stream, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	min, voxels, err := svo.DecodeVoxels(stream)
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	tree, err := svo.New(min, voxels, svo.WithLogger(log.StandardLogger()))
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	buf := tree.Flatten()
	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return err
	}
	st := tree.Stats()
	log.WithFields(log.Fields{
		"path":    outPath,
		"bytes":   len(buf),
		"parents": st.Parents,
		"leaves":  st.Leaves,
		"scale":   tree.Scale(),
	}).Info("raw buffer saved")
	return nil
}
