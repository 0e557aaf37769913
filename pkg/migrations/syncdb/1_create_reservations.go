package syncdb

import (
	"context"
	"log"

	mghelper "github.com/tablepilot/platform-sync/pkg/pgutil/migrations"
	"github.com/tablepilot/platform-sync/pkg/reservation"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating reservations and customers tables...")
		if err := mghelper.CreateSchema(ctx, db, &reservation.ReservationDao{}, &reservation.CustomerDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateIndexes(ctx, db, "reservations", "restaurant_id", "status", "starts_at"); err != nil {
			return err
		}
		return mghelper.CreateIndexes(ctx, db, "customers", "restaurant_id", "phone")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping reservations and customers tables...")
		return mghelper.DropTables(ctx, db, &reservation.ReservationDao{}, &reservation.CustomerDao{})
	})
}
