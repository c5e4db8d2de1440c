package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"idphoto/internal/infra"
	"idphoto/internal/intake"
	"idphoto/internal/media"
	"idphoto/internal/providers/genai"
	"idphoto/internal/recolor"
	"idphoto/internal/session"
	"idphoto/internal/storage"
	"idphoto/pkg/zip"
)

type options struct {
	source   string
	template string
	outDir   string
	name     string
	bundle   bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. gen replaces the Gemini client when non-nil.
func newRootCmd(gen recolor.Generator) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "recolor",
		Short:         "Replace the background of an ID photo with the color of a template",
		Example:       "  recolor --source me.jpg --template blue.png --out ./out",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "recolor").Logger()
			if gen == nil {
				gen = genai.NewClient(genai.Options{
					APIKey:  cfg.GeminiAPIKey,
					BaseURL: cfg.GeminiBaseURL,
					Model:   cfg.GeminiModel,
					Logger:  &logger,
				})
			}
			orchestrator := recolor.New(gen,
				recolor.WithLogger(&logger),
				recolor.WithTimeout(cfg.GeminiTimeout),
				recolor.WithAttempts(cfg.GeminiAttempts),
			)
			return run(cmd.Context(), cmd.OutOrStdout(), opts, orchestrator, intake.New(nil, cfg.MaxUploadBytes))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.source, "source", "", "path to the source portrait")
	flags.StringVar(&opts.template, "template", "", "path to the color template")
	flags.StringVar(&opts.outDir, "out", ".", "directory for the generated photo")
	flags.StringVar(&opts.name, "name", "modified-id-photo.png", "file name of the generated photo")
	flags.BoolVar(&opts.bundle, "bundle", false, "also write a zip with source, template and result")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func run(ctx context.Context, stdout io.Writer, opts *options, recolorer session.Recolorer, in *intake.Intake) error {
	sess := session.New("cli", recolorer, in)
	defer sess.Close()

	source, err := encodeFile(ctx, in, opts.source)
	if err != nil {
		return err
	}
	sess.SetSource(source)
	template, err := encodeFile(ctx, in, opts.template)
	if err != nil {
		return err
	}
	sess.SetTemplate(template)

	if !sess.Generate(ctx) {
		return fmt.Errorf("generation did not start: %s", sess.Snapshot().Error)
	}
	view := sess.Snapshot()
	if view.State != session.Succeeded {
		return fmt.Errorf("generation failed: %s", view.Error)
	}

	d, err := media.ParseDataURL(view.Result)
	if err != nil {
		return err
	}
	result, err := d.Decode()
	if err != nil {
		return err
	}

	store, err := storage.NewFileStore(opts.outDir)
	if err != nil {
		return err
	}
	key, err := store.Write(ctx, opts.name, result)
	if err != nil {
		return err
	}
	path, err := store.Path(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)

	if !opts.bundle {
		return nil
	}
	assets := []zip.Asset{{Filename: key, MIME: d.MediaType, Data: result}}
	for _, slot := range []struct {
		label string
		img   intake.EncodedImage
	}{{"source", view.Source}, {"template", view.Template}} {
		preview, ok := in.Previews().Get(slot.img.Display)
		if !ok {
			continue
		}
		assets = append(assets, zip.Asset{Filename: slot.label + media.Extension(preview.MediaType), MIME: preview.MediaType, Data: preview.Data})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		return err
	}
	bundleKey, err := store.Write(ctx, "idphoto-bundle.zip", archive)
	if err != nil {
		return err
	}
	bundlePath, err := store.Path(bundleKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, bundlePath)
	return nil
}

func encodeFile(ctx context.Context, in *intake.Intake, path string) (intake.EncodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return intake.EncodedImage{}, err
	}
	defer f.Close()
	img, err := in.Encode(ctx, &intake.File{Name: filepath.Base(path), Reader: f})
	if err != nil {
		return intake.EncodedImage{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
