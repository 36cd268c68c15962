package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"voicetransor/internal/config"
	"voicetransor/internal/domain"
	"voicetransor/internal/eventlog"
	"voicetransor/internal/jobs"
	"voicetransor/internal/services"
	"voicetransor/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const maxFeedEvents = 1000

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio and video",
		Pattern:     "*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.opus;*.wma;*.mp4;*.mov;*.mkv;*.avi;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var fontDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Fonts",
		Pattern:     "*.ttf;*.otf",
	},
}

// App wires configuration, the job runner, stores and UI runtime callbacks.
type App struct {
	Store  config.Store
	assets fs.FS
	logger *slog.Logger
	build  func(domain.Settings) (*services.Services, error)

	// emit pushes a named event to the frontend.
	emit func(name string, data any)
	// confirm asks the user a yes/no question.
	confirm func(title, message string) (bool, error)

	events *eventlog.Log[jobs.Event]

	mu          sync.Mutex
	settings    domain.Settings
	services    *services.Services
	stale       bool
	current     *jobs.Handle
	diagnostics domain.DiagnosticReport
	runtimeCtx  context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	settingsPath := config.DefaultPath()
	if err := services.EnsureLocalBinOnPATH(filepath.Dir(settingsPath)); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(settingsPath)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	app := newApp(store, slog.Default(), nil)
	app.assets = assets
	app.build = func(s domain.Settings) (*services.Services, error) {
		return services.Build(s, services.Options{Logger: app.logger, OnCommand: app.publishCommandLog})
	}
	if err := app.install(settings); err != nil {
		return nil, err
	}
	return app, nil
}

// newApp creates an App without services; install or a test sets them.
func newApp(store config.Store, logger *slog.Logger, build func(domain.Settings) (*services.Services, error)) *App {
	app := &App{
		Store:  store,
		logger: logger,
		build:  build,
		events: eventlog.New[jobs.Event](maxFeedEvents),
	}
	app.emit = app.emitRuntime
	app.confirm = app.confirmDialog
	return app
}

// install builds services for settings and swaps them in. The previous
// services must be idle.
func (a *App) install(settings domain.Settings) error {
	svc, err := a.build(settings)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	if err := svc.Pruner.Start(settings.CheckpointPruneSchedule); err != nil {
		a.logger.Warn("checkpoint pruning disabled", "error", err)
	}

	a.mu.Lock()
	old := a.services
	a.services = svc
	a.settings = settings
	a.stale = false
	a.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			a.logger.Warn("close previous services", "error", err)
		}
	}

	a.refreshDiagnostics(settings)
	return nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "VoiceTransor",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown cancels the active job and releases stores.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	svc := a.services
	a.services = nil
	a.runtimeCtx = nil
	a.mu.Unlock()

	if svc != nil {
		if err := svc.Close(); err != nil {
			a.logger.Warn("close services", "error", err)
		}
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnostics(settings), nil
}

func (a *App) refreshDiagnostics(settings domain.Settings) domain.DiagnosticReport {
	svc, err := a.svc()
	if err != nil || svc.Checker == nil {
		return a.GetDiagnostics()
	}
	report := svc.Checker.Run(context.Background(), settings)

	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// SaveSettings normalizes and persists settings. Components are rebuilt right
// away when idle, otherwise once the active job ends.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	if a.jobActive() {
		a.mu.Lock()
		a.settings = normalized
		a.stale = true
		a.mu.Unlock()
		return normalized, nil
	}
	if err := a.install(normalized); err != nil {
		return domain.Settings{}, err
	}
	return normalized, nil
}

// PickInputFile opens a native file dialog for audio selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// PickFontFile opens a native file dialog for the PDF font.
func (a *App) PickFontFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select PDF font",
		Filters: fontDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// PickDirectory opens a native directory picker.
func (a *App) PickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}
	return openInFileManager(openPath)
}

// publishCommandLog forwards external tool invocations to the UI log pane.
func (a *App) publishCommandLog(log transcribe.CommandLog) {
	a.emit("job:log", log)
}

// emitRuntime sends a push event once the Wails runtime is up.
func (a *App) emitRuntime(name string, data any) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, name, data)
	}
}

// confirmDialog asks a yes/no question with a native dialog.
func (a *App) confirmDialog(title, message string) (bool, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return false, err
	}

	answer, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "Yes",
		CancelButton:  "No",
	})
	if err != nil {
		return false, err
	}
	return answer == "Yes", nil
}

// svc returns the live services or an error during shutdown.
func (a *App) svc() (*services.Services, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.services == nil {
		return nil, fmt.Errorf("application is shutting down")
	}
	return a.services, nil
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for empty choices.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelsDir = strings.TrimSpace(settings.ModelsDir)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.CheckpointDir = strings.TrimSpace(settings.CheckpointDir)
	settings.PresetDB = strings.TrimSpace(settings.PresetDB)
	settings.PDFFontPath = strings.TrimSpace(settings.PDFFontPath)
	settings.Model = strings.TrimSpace(settings.Model)
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.Language == "" {
		settings.Language = "auto"
	}
	if settings.Device == "" {
		settings.Device = "auto"
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
