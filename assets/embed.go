// Package assets holds files embedded into the binaries.
package assets

import _ "embed"

// Menu is the default catalog shipped with the client.
//
//go:embed menu.json
var Menu []byte
