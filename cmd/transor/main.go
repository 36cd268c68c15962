// Command transor runs VoiceTransor jobs from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/pflag"

	"voicetransor/internal/config"
	"voicetransor/internal/domain"
	"voicetransor/internal/jobs"
	"voicetransor/internal/modelcache"
	"voicetransor/internal/presets"
	"voicetransor/internal/services"
	"voicetransor/internal/transcript"
)

const usage = `usage: transor <command> [flags] [args]

commands:
  transcribe [-m model] [-l language] [--device d] [--timestamps] [-o file] [--stream] [-y] <audio>
  textop (-p preset | --prompt text) [-o file] [--pdf file] [--stream] <input|->
  presets list | add <name> <prompt> | rm [-y] <name>
  models [list] | download [-y] <name>
  probe <audio>
  doctor
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	store := config.NewJSONStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := services.Build(settings, services.Options{Logger: logger})
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "transcribe":
		err = runTranscribe(ctx, svc, args)
	case "textop":
		err = runTextOp(ctx, svc, args)
	case "presets":
		err = runPresets(ctx, svc, args)
	case "models":
		err = runModels(ctx, svc, args)
	case "probe":
		err = runProbe(ctx, svc, args)
	case "doctor":
		err = runDoctor(ctx, svc)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		svc.Close()
		os.Exit(1)
	}
}

func runTranscribe(ctx context.Context, svc *services.Services, args []string) error {
	settings := svc.Settings
	fs := pflag.NewFlagSet("transcribe", pflag.ExitOnError)
	fs.StringVarP(&settings.Model, "model", "m", settings.Model, "whisper model name")
	fs.StringVarP(&settings.Language, "language", "l", settings.Language, "language code or auto")
	fs.StringVar(&settings.Device, "device", settings.Device, "auto, cpu, cuda or mps")
	fs.BoolVar(&settings.IncludeTimestamps, "timestamps", settings.IncludeTimestamps, "prefix lines with timestamps")
	out := fs.StringP("out", "o", "", "write transcript to file (.srt writes SubRip)")
	stream := fs.Bool("stream", false, "print segments to stderr as they finish")
	yes := fs.BoolP("yes", "y", false, "download a missing model without asking")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("transcribe needs exactly one audio file")
	}

	if err := ensureModel(ctx, svc, settings.Model, *yes); err != nil {
		return err
	}
	svc.Pruner.RunOnce()

	state, err := runJob(ctx, svc.Runner, services.TranscriptionDescriptor(settings, fs.Arg(0)), *stream)
	if err != nil {
		return err
	}
	if state.Status == domain.JobStatusCancelled {
		fmt.Fprintln(os.Stderr, "cancelled; progress was saved and the next run resumes from it")
		return nil
	}

	result := state.Result
	switch {
	case *out == "":
		fmt.Println(result.Text)
		return nil
	case strings.EqualFold(filepath.Ext(*out), ".srt"):
		return svc.Exporter.WriteSRT(*out, result.Segments)
	default:
		return svc.Exporter.WriteText(*out, result.Text)
	}
}

func runTextOp(ctx context.Context, svc *services.Services, args []string) error {
	fs := pflag.NewFlagSet("textop", pflag.ExitOnError)
	presetName := fs.StringP("preset", "p", "", "saved or built-in preset name")
	prompt := fs.String("prompt", "", "instruction text")
	out := fs.StringP("out", "o", "", "write result to text file")
	pdf := fs.String("pdf", "", "write result to PDF file")
	stream := fs.Bool("stream", false, "print output to stderr as it arrives")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("textop needs an input file or - for stdin")
	}

	instruction := *prompt
	title := "VoiceTransor Result"
	if *presetName != "" {
		preset, err := findPreset(ctx, svc, *presetName)
		if err != nil {
			return err
		}
		instruction = preset.PromptText
		title = preset.Name
	}
	if strings.TrimSpace(instruction) == "" {
		return fmt.Errorf("one of --preset or --prompt is required")
	}

	input, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := svc.Runner.CheckTextService(ctx); err != nil {
		return err
	}

	state, err := runJob(ctx, svc.Runner, services.TextOperationDescriptor(instruction, input), *stream)
	if err != nil || state.Status == domain.JobStatusCancelled {
		return err
	}

	text := state.Result.Text
	if *pdf != "" {
		if err := svc.Exporter.WritePDF(*pdf, title, text); err != nil {
			return err
		}
	}
	if *out != "" {
		return svc.Exporter.WriteText(*out, text)
	}
	if *pdf == "" {
		fmt.Println(text)
	}
	return nil
}

// runJob submits desc, prints progress and cancels the job when ctx ends.
// With stream set, partial output is printed as it arrives. Failed jobs are
// returned as errors.
func runJob(ctx context.Context, runner *jobs.Runner, desc domain.JobDescriptor, stream bool) (domain.JobState, error) {
	h, err := runner.Submit(desc)
	if err != nil {
		return domain.JobState{}, err
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = runner.Cancel(h)
		case <-h.Done():
		}
	}()

	for event := range runner.Subscribe(context.Background(), h) {
		if event.Type != jobs.EventTypeProgress {
			continue
		}
		if stream {
			printPartial(event)
			continue
		}
		fmt.Fprintf(os.Stderr, "\r%5.1f%%  elapsed %s  eta %s   ", event.Progress*100, event.Elapsed.Round(time.Second), formatETA(event.ETA))
	}
	fmt.Fprintln(os.Stderr)
	<-h.Done()

	state := h.State()
	if state.Status == domain.JobStatusFailed {
		return state, fmt.Errorf("%s: %s", state.Error.Category, state.Error.Message)
	}
	return state, nil
}

// printPartial writes the output a Progress event carries to stderr.
func printPartial(event jobs.Event) {
	for _, seg := range event.Segments {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", transcript.FormatTimestamp(seg.Start), seg.Text)
	}
	if event.Chunk != "" {
		fmt.Fprint(os.Stderr, event.Chunk)
	}
}

func runPresets(ctx context.Context, svc *services.Services, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		saved, err := svc.Presets.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range append(presets.Builtins(), saved...) {
			marker := " "
			if p.Builtin {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, p.Name)
		}
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: presets add <name> <prompt>")
		}
		_, err := svc.Presets.Create(ctx, args[1], args[2])
		return err
	case "rm":
		fs := pflag.NewFlagSet("presets rm", pflag.ExitOnError)
		yes := fs.BoolP("yes", "y", false, "delete without asking")
		_ = fs.Parse(args[1:])
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: presets rm [-y] <name>")
		}
		name := fs.Arg(0)
		if _, err := svc.Presets.Get(ctx, name); err != nil {
			return err
		}
		if !*yes && !confirm(fmt.Sprintf("Delete preset %q", name)) {
			return nil
		}
		return svc.Presets.Delete(ctx, name)
	default:
		return fmt.Errorf("unknown presets command %q", args[0])
	}
}

func runModels(ctx context.Context, svc *services.Services, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		for _, m := range svc.Models.Models() {
			state := "-"
			if m.Downloaded {
				state = "cached"
			}
			fmt.Printf("%-18s %-10s %s\n", m.ID, m.SizeLabel, state)
		}
		fmt.Printf("cache: %s\n", svc.Models.Dir())
		return nil
	}
	if args[0] != "download" {
		return fmt.Errorf("unknown models command %q", args[0])
	}

	fs := pflag.NewFlagSet("models download", pflag.ExitOnError)
	yes := fs.BoolP("yes", "y", false, "download without asking")
	_ = fs.Parse(args[1:])
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: models download [-y] <name>")
	}
	return ensureModel(ctx, svc, fs.Arg(0), *yes)
}

// ensureModel downloads a missing model after the user agrees.
func ensureModel(ctx context.Context, svc *services.Services, name string, yes bool) error {
	availability, err := svc.Models.CheckAvailability(name)
	if err != nil {
		return err
	}
	if availability.IsCached {
		return nil
	}

	model, _ := svc.Models.Lookup(name)
	if !yes && !confirm(fmt.Sprintf("Model %s (%s) is not downloaded. Download to %s", model.ID, model.SizeLabel, availability.CacheDir)) {
		return fmt.Errorf("model %s: %w", name, domain.ErrNotFound)
	}

	download, err := svc.Models.RequestDownload(name)
	if err != nil {
		return err
	}
	for p := range download.Subscribe(ctx) {
		if p.Status == modelcache.StatusDownloading {
			fmt.Fprintf(os.Stderr, "\rdownloading %s %5.1f%%", p.Model, p.Fraction*100)
		}
	}
	fmt.Fprintln(os.Stderr)
	return download.Wait(ctx)
}

func runProbe(ctx context.Context, svc *services.Services, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: probe <audio>")
	}
	info, err := svc.Transcriber.Probe(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("format:   %s\nduration: %s\ncodec:    %s\nrate:     %d Hz, %d ch\n",
		info.FormatName, transcript.FormatTimestamp(info.DurationSeconds), info.Codec, info.SampleRate, info.Channels)
	return nil
}

func runDoctor(ctx context.Context, svc *services.Services) error {
	report := svc.Checker.Run(ctx, svc.Settings)
	for _, item := range report.Items {
		fmt.Printf("[%s] %-28s %s\n", item.Status, item.Name, item.Message)
		if item.Hint != "" {
			fmt.Printf("       %s\n", item.Hint)
		}
	}
	if report.HasFailures {
		return errors.New("some checks failed")
	}
	return nil
}

func findPreset(ctx context.Context, svc *services.Services, name string) (domain.Preset, error) {
	preset, err := svc.Presets.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		if builtin, ok := presets.LookupBuiltin(name); ok {
			return builtin, nil
		}
	}
	return preset, err
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read input: %v", domain.ErrIO, err)
	}
	return string(data), nil
}

func confirm(label string) bool {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}

func formatETA(eta *time.Duration) string {
	if eta == nil {
		return "--"
	}
	return eta.Round(time.Second).String()
}
