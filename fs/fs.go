// Package appfs embeds the static assets the app needs at runtime:
// database migrations and email templates.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
