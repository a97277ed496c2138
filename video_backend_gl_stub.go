//go:build !gl || headless

package main

func NewGLOutput(gpu *GameStationGPU) (VideoOutput, error) {
	return nil, &VideoError{Operation: "backend creation", Details: "gl host not compiled into this build, rebuild with -tags gl"}
}

func newGLQuadBackend() QuadBackend {
	return nil
}
