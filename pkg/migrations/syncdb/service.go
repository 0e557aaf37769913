// Package syncdb holds all the migrations for the sync engine database
package syncdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the sync engine database
var Migrations = migrate.NewMigrations()
