package utils

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/voxelsplace/svo/api"
)

// RunSVOB2GLB converts an .svob container into a .glb with one cube per
// solid leaf.
func RunSVOB2GLB(inPath, outPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	glb, err := api.SVOBToGLB(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, glb, 0o644); err != nil {
		return err
	}
	log.WithFields(log.Fields{"path": outPath, "bytes": len(glb)}).Info(".glb saved")
	return nil
}
