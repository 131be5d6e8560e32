// Command importer copies a directory of JSON exports into a SQLite
// database the server can read with DATA_SOURCE=sqlite.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"farmviz/internal/source"
)

func main() {
	dir := flag.String("dir", "data", "directory holding the JSON exports")
	out := flag.String("out", "farmviz.db", "SQLite file to write")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, *dir, *out); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir, out string) error {
	t0 := time.Now()
	c, report, err := source.NewJSONDir(dir).Load(ctx)
	if err != nil {
		return err
	}
	for _, re := range report.Skipped {
		slog.Warn("record skipped", "collection", re.Collection, "key", re.Key, "field", re.Field, "error", re.Err)
	}

	db, err := source.OpenSQLite(out)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := db.Import(ctx, c); err != nil {
		return err
	}
	slog.Info("import complete",
		"farms", len(c.Farms),
		"locations", len(c.Locations),
		"crops", len(c.Crops),
		"crop_varieties", len(c.Varieties),
		"countries", len(c.Countries),
		"skipped", len(report.Skipped),
		"duration", time.Since(t0),
	)
	return nil
}
