//go:build headless || gl

package main

func NewEbitenOutput(gpu *GameStationGPU) (VideoOutput, error) {
	return nil, &VideoError{Operation: "backend creation", Details: "ebiten host not compiled into this build"}
}

func newEbitenQuadBackend() QuadBackend {
	return nil
}
