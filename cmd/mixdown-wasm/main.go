//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"syscall/js"

	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/render"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

var (
	renderer *render.Renderer
	library  *sound.Library
)

func main() {
	// Keep program running
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmAddSound", js.FuncOf(wasmAddSound))
	js.Global().Set("wasmRenderWAV", js.FuncOf(wasmRenderWAV))

	println("WASM mixdown module loaded")
	<-c
}

// wasmInit(sampleRate) prepares an empty sound library and a renderer.
func wasmInit(this js.Value, args []js.Value) interface{} {
	opts := render.DefaultOptions()
	if len(args) > 0 {
		opts.SampleRate = args[0].Int()
	}
	r, err := render.New(opts)
	if err != nil {
		println("init failed:", err.Error())
		return false
	}
	renderer = r
	library = sound.NewLibrary(opts.SampleRate, nil)
	println("Mixdown initialized at", opts.SampleRate, "Hz")
	return true
}

// wasmAddSound(name, arrayBuffer) decodes a WAV file into the library.
func wasmAddSound(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || library == nil {
		return false
	}
	name := args[0].String()
	data := make([]byte, args[1].Get("byteLength").Int())
	js.CopyBytesToGo(data, js.Global().Get("Uint8Array").New(args[1]))

	b, err := sound.DecodeWAV(bytes.NewReader(data), library.SampleRate())
	if err != nil {
		println("sound", name, "rejected:", err.Error())
		return false
	}
	if err := library.Add(name, b); err != nil {
		println("sound", name, "rejected:", err.Error())
		return false
	}
	return true
}

// wasmRenderWAV(projectJSON) returns the mixdown as a Uint8Array, or null.
func wasmRenderWAV(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || renderer == nil {
		return js.Null()
	}
	p, err := project.Decode([]byte(args[0].String()), project.FormatJSON)
	if err != nil {
		println("project rejected:", err.Error())
		return js.Null()
	}
	tmap := tempo.New(p)
	withAudio, missing := p.WithAudio(library, tmap)
	for _, name := range missing {
		println("missing sound:", name)
	}
	blob, err := renderer.RenderWAV(context.Background(), withAudio, tmap)
	if err != nil {
		println("render failed:", err.Error())
		return js.Null()
	}
	out := js.Global().Get("Uint8Array").New(len(blob.Data))
	js.CopyBytesToJS(out, blob.Data)
	return out
}
