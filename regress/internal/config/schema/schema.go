// Package schema embeds the JSON schema of the run configuration.
package schema

import "embed"

// FS holds config.schema.json.
//
//go:embed config.schema.json
var FS embed.FS
