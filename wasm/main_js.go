//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/voxelsplace/svo/api"
	"github.com/voxelsplace/svo/svo"
)

func bytesArg(v js.Value) []byte {
	buf := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(buf, v)
	return buf
}

func toUint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func json2vox(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing voxel JSON string")
	}
	out, err := api.VoxelJSONToStream([]byte(args[0].String()))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toUint8Array(out)
}

// vox2svob(stream, compression?) where compression is "none", "zlib" or "zstd".
func vox2svob(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing svox bytes")
	}
	comp := svo.CompZstd
	if len(args) > 1 {
		c, err := svo.ParseCompression(args[1].String())
		if err != nil {
			return js.ValueOf(err.Error())
		}
		comp = c
	}
	out, err := api.VoxelStreamToSVOB(bytesArg(args[0]), comp)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toUint8Array(out)
}

func svob2glb(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing svob bytes")
	}
	out, err := api.SVOBToGLB(bytesArg(args[0]))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toUint8Array(out)
}

func main() {
	js.Global().Set("json2vox", js.FuncOf(json2vox))
	js.Global().Set("vox2svob", js.FuncOf(vox2svob))
	js.Global().Set("svob2glb", js.FuncOf(svob2glb))
	select {}
}
