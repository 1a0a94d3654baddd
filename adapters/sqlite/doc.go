// Package exportsqlite renders sheets as SQLite databases.
//
// Every sheet becomes one table of TEXT columns named after the schema
// column names. Rows wider than the header add positional columns, shorter
// rows leave the missing columns NULL. Register the renderer before
// resolving a sink for export.FormatSQLite:
//
//	registry := export.DefaultRenderers()
//	_ = exportsqlite.Register(registry)
//	sink, err := export.NewRendererSink(registry, export.FormatSQLite, store)
//
// The table name comes from the render options (RendererSink uses the
// sheet name), then Renderer.TableName, then "data".
package exportsqlite
