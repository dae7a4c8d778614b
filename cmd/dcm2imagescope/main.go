package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/sectra2qupath/internal/classify"
	"github.com/woozymasta/sectra2qupath/internal/convert"
	"github.com/woozymasta/sectra2qupath/internal/dicomgfx"
	"github.com/woozymasta/sectra2qupath/internal/imagescope"
	"github.com/woozymasta/sectra2qupath/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Input  string `short:"i" long:"input"  description:"DICOM annotation file" required:"true"`
	Output string `short:"o" long:"output" description:"XML output path, defaults to the input name with _aperio.xml"`
	Slide  string `short:"s" long:"slide"  description:"Slide image used to scale normalized coordinates to pixels"`
	Scheme string `short:"c" long:"colors" description:"Color regions by class with this scheme instead of plain green"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	if opts.Output == "" {
		opts.Output = strings.TrimSuffix(opts.Input, filepath.Ext(opts.Input)) + "_aperio.xml"
	}

	p, err := dicomgfx.ReadFile(opts.Input)
	if err != nil {
		log.Fatal().Err(err).Str("input", opts.Input).Msg("Failed to read DICOM")
	}

	var so imagescope.Options
	so.Width, so.Height = convert.ImageSize(opts.Slide, p)
	if opts.Scheme != "" {
		scheme, err := classify.ParseScheme(opts.Scheme)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid color scheme")
		}
		so.Colors = classify.NewRegistry(scheme)
	}

	doc := imagescope.FromPresentation(p, so)
	if err := imagescope.WriteFile(opts.Output, doc); err != nil {
		log.Fatal().Err(err).Str("output", opts.Output).Msg("Failed to write XML")
	}

	log.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Int("annotations", len(doc.Annotations)).
		Msg("ImageScope XML saved")
}
