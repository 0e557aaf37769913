package syncdb

import (
	"context"
	"log"

	mghelper "github.com/tablepilot/platform-sync/pkg/pgutil/migrations"
	"github.com/tablepilot/platform-sync/pkg/synclog"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating sync_logs table...")
		if err := mghelper.CreateSchema(ctx, db, &synclog.LogDao{}); err != nil {
			return err
		}
		// The retry sweep scans status + next_retry_at; webhook dedupe
		// looks up by restaurant, platform and event id.
		if err := mghelper.CreateIndexes(ctx, db, "sync_logs", "status", "next_retry_at"); err != nil {
			return err
		}
		return mghelper.CreateCompositeIndex(ctx, db, "sync_logs",
			"sync_logs_event_lookup_idx", "restaurant_id", "platform", "event_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping sync_logs table...")
		return mghelper.DropTables(ctx, db, &synclog.LogDao{})
	})
}
