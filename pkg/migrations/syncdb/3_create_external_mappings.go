package syncdb

import (
	"context"
	"log"

	mghelper "github.com/tablepilot/platform-sync/pkg/pgutil/migrations"
	"github.com/tablepilot/platform-sync/pkg/syncmap"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating external_mappings table...")
		if err := mghelper.CreateSchema(ctx, db, &syncmap.MappingDao{}); err != nil {
			return err
		}
		// A local entity maps to at most one external id per platform, and
		// an external id belongs to at most one local entity.
		if err := mghelper.CreateCompositeUniqueIndex(ctx, db, "external_mappings",
			"external_mappings_local_uq", "restaurant_id", "platform", "entity_type", "local_id"); err != nil {
			return err
		}
		if err := mghelper.CreateCompositeUniqueIndex(ctx, db, "external_mappings",
			"external_mappings_external_uq", "restaurant_id", "platform", "entity_type", "external_id"); err != nil {
			return err
		}
		return mghelper.CreateIndexes(ctx, db, "external_mappings", "sync_status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping external_mappings table...")
		return mghelper.DropTables(ctx, db, &syncmap.MappingDao{})
	})
}
