// Package version holds the build version of Traffic Viewer.
package version

// Version is overridden at link time with -ldflags "-X trafficviewer/pkg/version.Version=...".
var Version = "v0.4.0"
