// Package appfs embeds the static files shipped with the binaries:
// database migrations, email templates and the common passwords list.
package appfs

import "embed"

//go:embed assets assets/templates/email/_base.txt assets/templates/email/_base.gohtml migrations
var FS embed.FS
