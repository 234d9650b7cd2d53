// Package main provides the entry point for the Sample Annotator
// application.
package main

import (
	"log/slog"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/engine"
	"sample-annotator/internal/prefs"
	"sample-annotator/internal/selection"
	"sample-annotator/internal/undo"
	"sample-annotator/internal/version"
	"sample-annotator/internal/workspace"
	"sample-annotator/ui/mainwindow"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("ANNOTATOR_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting sample annotator",
		"version", version.Version,
		"commit", version.GitCommit,
		"built", version.BuildTime,
	)

	p := prefs.Load()

	assets := asset.NewStore(logger)
	selections := selection.NewStore(p, logger)
	undos := undo.NewStack()
	eng := engine.New(assets, selections, undos, logger)
	ws := workspace.New(eng, assets, selections)

	fyneApp := fyneapp.NewWithID("io.sample.annotator")
	win := mainwindow.New(fyneApp, ws)

	// Open any images named on the command line.
	for _, path := range os.Args[1:] {
		if _, err := ws.AddImage(path); err != nil {
			logger.Error("failed to open image", "path", path, "err", err)
		}
	}

	win.ShowAndRun()
}
