// Package registry owns the catalog of installed extension modules.
//
// Components:
//   - Storage: filesystem layout for the catalog document and cached scripts
//   - Manager: single source of truth for module records; downloads,
//     validates, caches, revalidates and removes modules
//   - Seeder: installs a configured list of catalog URLs on startup
//
// Storage Structure:
//   - <root>/modules.json        catalog (JSON array of records)
//   - <root>/scripts/<uuid>.js   cached script bodies
//
// Every mutation rewrites the whole catalog through a temp file and an
// atomic rename, so a crash mid-write leaves the previous catalog intact.
//
// Example Usage:
//
//	store := registry.NewStorage(cfg.Storage.Dir)
//	manager := registry.NewManager(store, httpClient, logger)
//	if err := manager.Initialize(ctx); err != nil { ... }
//	rec, err := manager.Install(ctx, "https://example.com/source.json")
//	body, err := manager.ScriptBody(rec.ID)
package registry
