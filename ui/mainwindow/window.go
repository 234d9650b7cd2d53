// Package mainwindow provides the main application window.
package mainwindow

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"sample-annotator/internal/engine"
	"sample-annotator/internal/export"
	"sample-annotator/internal/selection"
	"sample-annotator/internal/version"
	"sample-annotator/internal/workspace"
	"sample-annotator/ui/annotator"
)

const prefKeyLastDir = "lastDirectory"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app fyne.App
	ws  *workspace.Workspace
	eng *engine.Engine

	canvas    *annotator.Canvas
	imageList *widget.List
	statusBar *widget.Label

	lengthEntry    *widget.Entry
	widthEntry     *widget.Entry
	thicknessEntry *widget.Entry

	toolButtons map[engine.Tool]*widget.Button
}

// New creates a new main window.
func New(fyneApp fyne.App, ws *workspace.Workspace) *MainWindow {
	win := fyneApp.NewWindow("Sample Annotator " + version.Version)

	mw := &MainWindow{
		Window:      win,
		app:         fyneApp,
		ws:          ws,
		eng:         ws.Engine(),
		toolButtons: make(map[engine.Tool]*widget.Button),
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	win.Resize(fyne.NewSize(1100, 760))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = annotator.NewCanvas(mw.eng)
	mw.statusBar = widget.NewLabel("Ready")

	toolbar := mw.createToolbar()
	side := mw.createSidePanel()

	canvasArea := container.NewBorder(
		toolbar, // top
		nil,     // bottom
		nil,     // left
		nil,     // right
		mw.canvas,
	)

	split := container.NewHSplit(side, canvasArea)
	split.SetOffset(0.22)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	)
	mw.SetContent(content)
}

// createToolbar creates the tool selector row.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	makeTool := func(label string, t engine.Tool) *widget.Button {
		btn := widget.NewButton(label, func() {
			mw.ws.SetTool(t)
		})
		mw.toolButtons[t] = btn
		return btn
	}

	resetBtn := widget.NewButton("Reset View", func() {
		mw.eng.ResetViewport()
		mw.canvas.Refresh()
	})

	bar := container.NewHBox(
		makeTool("Pan", engine.ToolPan),
		makeTool("Move", engine.ToolTranslate),
		makeTool("Rotate", engine.ToolRotate),
		makeTool("Erase", engine.ToolErase),
		makeTool("Restore", engine.ToolRestore),
		widget.NewSeparator(),
		resetBtn,
	)
	mw.updateToolButtons(mw.eng.Tool())
	return bar
}

// createSidePanel builds the image list, overlay toggles, and the
// dimensions form.
func (mw *MainWindow) createSidePanel() fyne.CanvasObject {
	mw.imageList = widget.NewList(
		func() int { return len(mw.ws.Entries()) },
		func() fyne.CanvasObject { return widget.NewLabel("image") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			entries := mw.ws.Entries()
			if i < len(entries) {
				o.(*widget.Label).SetText(entries[i].Name)
			}
		},
	)
	mw.imageList.OnSelected = func(i widget.ListItemID) {
		entries := mw.ws.Entries()
		if i >= len(entries) {
			return
		}
		if err := mw.ws.SelectImage(entries[i].ID); err != nil {
			dialog.ShowError(err, mw.Window)
		}
		mw.canvas.Refresh()
	}

	maskCheck := widget.NewCheck("Show mask", func(v bool) {
		mw.ws.SetMaskVisible(v)
		mw.canvas.Refresh()
	})
	maskCheck.SetChecked(true)
	selCheck := widget.NewCheck("Show selection", func(v bool) {
		mw.ws.SetSelectionVisible(v)
		mw.canvas.Refresh()
	})
	selCheck.SetChecked(true)

	mw.lengthEntry = widget.NewEntry()
	mw.lengthEntry.SetPlaceHolder("length (mm)")
	mw.widthEntry = widget.NewEntry()
	mw.widthEntry.SetPlaceHolder("width (mm)")
	mw.thicknessEntry = widget.NewEntry()
	mw.thicknessEntry.SetPlaceHolder("thickness (mm)")

	applyBtn := widget.NewButton("Apply Dimensions", mw.onApplyDimensions)
	clearBtn := widget.NewButton("Clear Selection", func() {
		mw.ws.SetDimensions(nil)
		mw.canvas.Refresh()
		mw.updateStatus("Selection cleared")
	})

	form := container.NewVBox(
		widget.NewLabel("Sample dimensions"),
		mw.lengthEntry,
		mw.widthEntry,
		mw.thicknessEntry,
		applyBtn,
		clearBtn,
	)

	return container.NewBorder(
		container.NewVBox(maskCheck, selCheck, widget.NewSeparator()),
		form,
		nil,
		nil,
		mw.imageList,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Annotation...", mw.onExportAnnotation),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mw.onUndo),
		fyne.NewMenuItem("Redo", mw.onRedo),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Reset Viewport", func() {
			mw.eng.ResetViewport()
			mw.canvas.Refresh()
		}),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu))
}

// setupEventHandlers wires workspace events to UI refreshes.
func (mw *MainWindow) setupEventHandlers() {
	mw.ws.On(workspace.EventImagesChanged, func(interface{}) {
		mw.imageList.Refresh()
	})
	mw.ws.On(workspace.EventImageSelected, func(data interface{}) {
		if id, ok := data.(string); ok && id != "" {
			mw.updateStatus("Selected " + id)
		}
		mw.canvas.Refresh()
	})
	mw.ws.On(workspace.EventToolChanged, func(data interface{}) {
		if t, ok := data.(engine.Tool); ok {
			mw.updateToolButtons(t)
			mw.updateStatus("Tool: " + t.String())
		}
	})
	mw.ws.On(workspace.EventDimensionsChanged, func(interface{}) {
		mw.canvas.Refresh()
	})
}

func (mw *MainWindow) updateToolButtons(active engine.Tool) {
	for t, btn := range mw.toolButtons {
		if t == active {
			btn.Importance = widget.HighImportance
		} else {
			btn.Importance = widget.MediumImportance
		}
		btn.Refresh()
	}
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	lister, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return lister
}

func (mw *MainWindow) saveLastDir(filePath string) {
	mw.app.Preferences().SetString(prefKeyLastDir, filepath.Dir(filePath))
}

// onOpenImage shows the image file picker and adds the chosen file.
func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		mw.saveLastDir(path)
		if _, err := mw.ws.AddImage(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Opened " + filepath.Base(path))
		mw.canvas.Refresh()
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".webp", ".tif", ".tiff"}))
	if dir := mw.getLastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

// onApplyDimensions parses the form and stores the sample measurements.
func (mw *MainWindow) onApplyDimensions() {
	parse := func(e *widget.Entry) (float64, error) {
		if e.Text == "" {
			return 0, nil
		}
		return strconv.ParseFloat(e.Text, 64)
	}

	length, err := parse(mw.lengthEntry)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid length: %w", err), mw.Window)
		return
	}
	width, err := parse(mw.widthEntry)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid width: %w", err), mw.Window)
		return
	}
	thickness, err := parse(mw.thicknessEntry)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid thickness: %w", err), mw.Window)
		return
	}

	mw.ws.SetDimensions(&selection.Dimensions{
		Length:    length,
		Width:     width,
		Thickness: thickness,
	})
	mw.canvas.Refresh()
	mw.updateStatus("Dimensions applied")
}

// onExportAnnotation writes the submission payload to a chosen file.
func (mw *MainWindow) onExportAnnotation() {
	id := mw.eng.ImageID()
	if id == "" {
		dialog.ShowInformation("Export", "No image selected", mw.Window)
		return
	}

	payload, err := export.BuildPayload(id, mw.eng.MaskImage(), mw.eng.SelectionDescriptor())
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}

	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()

		enc := json.NewEncoder(writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Annotation exported")
	}, mw.Window)
	fd.SetFileName(id + ".annotation.json")
	if dir := mw.getLastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

func (mw *MainWindow) onUndo() {
	if mw.eng.Undo() {
		mw.canvas.Refresh()
		mw.updateStatus("Undo")
	}
}

func (mw *MainWindow) onRedo() {
	if mw.eng.Redo() {
		mw.canvas.Refresh()
		mw.updateStatus("Redo")
	}
}
