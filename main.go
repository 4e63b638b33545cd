//go:build !(js && wasm)

package main

import (
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/voxelsplace/svo/svo"
	"github.com/voxelsplace/svo/utils"
)

func usage() {
	fmt.Println("Usage: svotool <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  json2vox input.json output.svox                  (JSON voxel list -> .svox stream)")
	fmt.Println("  vox2svob input.svox output.svob [none|zlib|zstd] (build octree, store flattened buffer)")
	fmt.Println("  vox2raw input.svox output.bin                    (build octree, write host-order GPU buffer)")
	fmt.Println("  svob2glb input.svob output.glb                   (one cube per solid leaf)")
	fmt.Println("  inspect input.svob                               (validate and print header and materials)")
	fmt.Println("  gennoise <size> <percentage> <amount> <output_dir> (generate N random .svox files)")
	fmt.Println("Environment:")
	fmt.Println("  SVO_LOG_LEVEL  logrus level (debug, info, warn, error); default info")
}

func fail(err error) {
	log.WithError(err).Error("command failed")
	os.Exit(1)
}

func main() {
	if lvl := os.Getenv("SVO_LOG_LEVEL"); lvl != "" {
		l, err := log.ParseLevel(lvl)
		if err != nil {
			fail(err)
		}
		log.SetLevel(l)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "json2vox":
		if len(os.Args) != 4 {
			usage()
			os.Exit(1)
		}
		err = utils.RunJSON2VOX(os.Args[2], os.Args[3])
	case "vox2svob":
		if len(os.Args) != 4 && len(os.Args) != 5 {
			usage()
			os.Exit(1)
		}
		comp := svo.CompZstd
		if len(os.Args) == 5 {
			if comp, err = svo.ParseCompression(os.Args[4]); err != nil {
				fail(err)
			}
		}
		err = utils.RunVOX2SVOB(os.Args[2], os.Args[3], comp)
	case "vox2raw":
		if len(os.Args) != 4 {
			usage()
			os.Exit(1)
		}
		err = utils.RunVOX2RAW(os.Args[2], os.Args[3])
	case "svob2glb":
		if len(os.Args) != 4 {
			usage()
			os.Exit(1)
		}
		err = utils.RunSVOB2GLB(os.Args[2], os.Args[3])
	case "inspect":
		if len(os.Args) != 3 {
			usage()
			os.Exit(1)
		}
		_, err = utils.RunInspect(os.Args[2])
	case "gennoise":
		if len(os.Args) != 6 {
			usage()
			os.Exit(1)
		}
		size, perr := strconv.Atoi(os.Args[2])
		if perr != nil {
			fail(perr)
		}
		perc, perr := strconv.ParseFloat(os.Args[3], 64)
		if perr != nil {
			fail(perr)
		}
		amt, perr := strconv.Atoi(os.Args[4])
		if perr != nil {
			fail(perr)
		}
		err = utils.RunGenerateNoise(size, perc, amt, os.Args[5])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}

	log.Info("Operation completed!")
}
