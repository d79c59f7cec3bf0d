// Package toolchain detects which build toolchain a cloned repository uses,
// which decides how the scanner is invoked.
package toolchain

import (
	"os"
	"path/filepath"
)

// Variant identifies one supported build toolchain.
type Variant string

const (
	JVMBuild Variant = "jvm-build"
	DotNet   Variant = "dotnet"
	GoModule Variant = "go-module"
	Generic  Variant = "generic"
)

type probe struct {
	variant Variant
	marker  string
	detect  func(dir string) bool
}

// probes run in order and the first hit wins: a repository carrying both a
// pom.xml and a go.mod scans as a JVM build.
var probes = []probe{
	{JVMBuild, "pom.xml at the repository root", hasFile("pom.xml")},
	{DotNet, "*.sln or *.csproj at the repository root", hasDotnetMarkers},
	{GoModule, "go.mod at the repository root", hasFile("go.mod")},
}

// Detect inspects the repository root at dir and returns the matching
// variant, or Generic when no marker is present. Only the top level is
// inspected; nested build files belong to subprojects the scanner finds on
// its own.
func Detect(dir string) Variant {
	for _, p := range probes {
		if p.detect(dir) {
			return p.variant
		}
	}
	return Generic
}

func hasFile(name string) func(string) bool {
	return func(dir string) bool {
		info, err := os.Stat(filepath.Join(dir, name))
		return err == nil && !info.IsDir()
	}
}

func hasDotnetMarkers(dir string) bool {
	for _, pattern := range []string{"*.sln", "*.csproj"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				return true
			}
		}
	}
	return false
}

// Info describes one detectable toolchain for display purposes.
type Info struct {
	Variant Variant
	Marker  string
}

// Variants lists the known toolchains in detection order, the generic
// fallback last.
func Variants() []Info {
	out := make([]Info, 0, len(probes)+1)
	for _, p := range probes {
		out = append(out, Info{Variant: p.variant, Marker: p.marker})
	}
	return append(out, Info{Variant: Generic, Marker: "fallback when no marker matches"})
}
