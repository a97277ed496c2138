//go:build headless

package main

const defaultVideoBackend = VIDEO_BACKEND_HEADLESS

func init() {
	compiledFeatures = append(compiledFeatures, "video:headless-only")
}
