// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version information for the coopthread runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides build information about the runtime.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Scheduler names the scheduling discipline.
	Scheduler string

	// Preemption describes how forced yields are delivered.
	Preemption string
}

// GetInfo returns information about the runtime.
//
// Example:
//
//	info := thread.GetInfo()
//	fmt.Printf("coopthread %s (%s)\n", info.Version, info.Scheduler)
func GetInfo() Info {
	return Info{
		Version:    Version,
		Scheduler:  "cooperative FIFO",
		Preemption: "simulated timer, delivered at safe points",
	}
}

// Compatible reports whether this runtime satisfies a required version,
// using semantic version ordering. Under v1, a minor bump may break
// compatibility, so the major and minor must match exactly; from v1 on the
// major must match and this version must not be older.
//
// required may be written with or without the leading "v".
func Compatible(required string) (bool, error) {
	req := canonical(required)
	if !semver.IsValid(req) {
		return false, fmt.Errorf("invalid version %q", required)
	}
	cur := canonical(Version)

	if semver.Major(cur) != semver.Major(req) {
		return false, nil
	}
	if semver.Major(cur) == "v0" && semver.MajorMinor(cur) != semver.MajorMinor(req) {
		return false, nil
	}
	return semver.Compare(cur, req) >= 0, nil
}

func canonical(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		v = "v" + v
	}
	return semver.Canonical(v)
}
