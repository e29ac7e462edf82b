// Package migrations embeds the goose SQL migrations for the tables owned by
// the download service. Event and media tables belong to the product schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
