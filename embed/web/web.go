package web

import "embed"

// Assets is the single-page dashboard served at /.
//
//go:embed index.html
var Assets embed.FS
