// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import "errors"

var (
	// ErrNotLoaded is returned by operations that need a loaded workspace.
	ErrNotLoaded = errors.New("workspace not loaded")

	// ErrOutsideRoot indicates a path that does not lie under the
	// workspace root.
	ErrOutsideRoot = errors.New("path outside workspace root")

	// ErrWatchUnsupported indicates a root that is not on the local file
	// system.
	ErrWatchUnsupported = errors.New("watching requires a local root")
)
