// Package dashboard provides the embedded web UI assets for Watchboard.
//
// The page lists Handles grouped into panels, follows the /api/sse stream
// and posts enable and visibility changes back to the control endpoints.
// Colour markup in Handle text is rendered as styled spans.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Main dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
