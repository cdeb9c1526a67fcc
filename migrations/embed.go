// Package migrations embeds the versioned SQL schema for users, tasks,
// reports and the reward ledger.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql pairs consumed by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
