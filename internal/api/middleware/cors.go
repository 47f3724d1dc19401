// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"net/http"

	"github.com/teleclaude/teleclaude/internal/api/version"
)

// CORS is middleware that allows any origin to call the control surface.
// The daemon binds to loopback by default (spec.md §6.2's "local HTTP
// RPC"; server.host and --host can change the address), so this is a
// convenience for browser-based `telec`-style tools, not a cross-origin
// trust boundary.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+version.Header)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
