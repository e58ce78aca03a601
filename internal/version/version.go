// Package version carries the build version, overridable at link time.
package version

var Version = "0.3.0"
