package utils

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/voxelsplace/svo/api"
)

// RunJSON2VOX reads a JSON voxel list and writes it as an .svox stream.
// The JSON format is: {"min":[x,y,z],"voxels":[[x,y,z,material],...]}
func RunJSON2VOX(inJSONPath, outPath string) error {
	data, err := os.ReadFile(inJSONPath)
	if err != nil {
		return err
	}
	stream, err := api.VoxelJSONToStream(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, stream, 0o644); err != nil {
		return fmt.Errorf("failed to save voxel stream: %w", err)
	}
	log.WithFields(log.Fields{"path": outPath, "bytes": len(stream)}).Info(".svox saved")
	return nil
}
