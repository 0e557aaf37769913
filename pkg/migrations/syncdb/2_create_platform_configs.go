package syncdb

import (
	"context"
	"log"

	"github.com/tablepilot/platform-sync/pkg/platform"
	mghelper "github.com/tablepilot/platform-sync/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating platform_configs table...")
		if err := mghelper.CreateSchema(ctx, db, &platform.ConfigDao{}); err != nil {
			return err
		}
		// One integration per platform per restaurant; Save upserts on it.
		return mghelper.CreateCompositeUniqueIndex(ctx, db, "platform_configs",
			"platform_configs_restaurant_platform_uq", "restaurant_id", "platform")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping platform_configs table...")
		return mghelper.DropTables(ctx, db, &platform.ConfigDao{})
	})
}
