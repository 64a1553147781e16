// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command viewbind resolves PHP view variables to the controller bindings
// that define them.
//
// One-shot queries load the project, answer and exit:
//
//	viewbind --root ./shop controller app/views/quest/show.php
//	viewbind --root ./shop type app/views/quest/show.php item
//	viewbind --root ./shop members 'App\Model\Quest'
//	viewbind --root ./shop --json bindings app/views/quest/show.php
//
// The serve command keeps the project loaded and answers over HTTP:
//
//	viewbind --root ./shop serve --addr :8090 --watch
//	curl -X POST http://localhost:8090/v1/viewbind/type \
//	  -H "Content-Type: application/json" \
//	  -d '{"view": "app/views/quest/show.php", "variable": "item"}'
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
