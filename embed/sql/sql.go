package sql

import _ "embed"

// Schema creates every table and view. It is safe to run on each start.
//
//go:embed schema.sql
var Schema string
