// Package content embeds the default trade catalog and its translation bundles.
package content

import "embed"

// FS holds trades/*.yaml (one trade per file) and translations/*.yaml
// (one language per file).
//
//go:embed trades/*.yaml translations/*.yaml
var FS embed.FS
