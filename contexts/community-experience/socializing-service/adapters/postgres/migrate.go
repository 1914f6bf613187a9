package postgresadapter

import (
	"context"

	"gorm.io/gorm"
)

// Migrate creates or alters the service tables. The participants table is a
// projection owned upstream; it is created here so local setups can seed it.
func Migrate(ctx context.Context, db *gorm.DB, dryRun bool) error {
	session := db.WithContext(ctx)
	if dryRun {
		session = session.Session(&gorm.Session{DryRun: true})
	}
	return session.AutoMigrate(Models()...)
}
