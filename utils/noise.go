package utils

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"github.com/voxelsplace/svo/svo"
)

// maxNoiseSize bounds the cube edge; the shuffle holds one int per cell.
const maxNoiseSize = 256

// generateNoiseVoxels picks a given percentage of the cells of a size³ cube
// and assigns each a random material in [1..63].
func generateNoiseVoxels(size int, percentage float64, r *rand.Rand) []svo.Voxel {
	percentage = min(max(percentage, 0), 100)
	total := size * size * size
	want := min(int(float64(total)*(percentage/100.0)+0.5), total)

	// Fisher-Yates shuffle only the first 'want' items.
	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < want; i++ {
		j := i + r.Intn(total-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	voxels := make([]svo.Voxel, want)
	for k := range voxels {
		i := idx[k]
		voxels[k] = svo.Voxel{
			X:        uint16(i % size),
			Y:        uint16((i / size) % size),
			Z:        uint16(i / (size * size)),
			Material: uint16(1 + r.Intn(63)),
		}
	}
	return voxels
}

// RunGenerateNoise writes 'amount' .svox files named 0.svox..(amount-1).svox
// into outDir, each filling the given percentage of a size³ cube.
func RunGenerateNoise(size int, percentage float64, amount int, outDir string) error {
	return runGenerateNoise(size, percentage, amount, outDir, uint64(time.Now().UnixNano()))
}

func runGenerateNoise(size int, percentage float64, amount int, outDir string, baseSeed uint64) error {
	if size < 1 || size > maxNoiseSize {
		return fmt.Errorf("size must be in [1, %d], got %d", maxNoiseSize, size)
	}
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for i := 0; i < amount; i++ {
		// per-file seed from a Weyl-like progression
		const weyl = uint64(0x9e3779b97f4a7c15)
		seed := baseSeed ^ (uint64(i)+1)*weyl
		r := rand.New(rand.NewSource(int64(seed & 0x7fffffffffffffff)))

		voxels := generateNoiseVoxels(size, percentage, r)
		path := filepath.Join(outDir, fmt.Sprintf("%d.svox", i))
		if err := os.WriteFile(path, svo.EncodeVoxels(mgl32.Vec3{}, voxels), 0o644); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		log.WithFields(log.Fields{"path": path, "voxels": len(voxels)}).Debug("noise written")
	}
	return nil
}
