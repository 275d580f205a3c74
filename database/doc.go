// Package database opens the SQLite database behind the event store through
// GORM, with pooled connections, a zerolog-backed GORM logger, connection
// retries and a lifecycle component that migrates registered models.
//
//	comp := database.NewComponent(cfg, log).WithAutoMigrate(&store.EventRecord{})
//	registry.Register(comp)
//	// after Start:
//	events := store.New(comp.DB())
package database
