//go:build !statsview

package main

func launchStatsview(browse bool) bool {
	logf(LOG_TAG_HOST, "statsview not compiled into this build, rebuild with -tags statsview")
	return false
}
