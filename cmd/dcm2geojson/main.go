package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/sectra2qupath/internal/convert"
	"github.com/woozymasta/sectra2qupath/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Input  string `short:"i" long:"input"  description:"DICOM annotation file" required:"true"`
	Output string `short:"o" long:"output" description:"GeoJSON output path, defaults to the input name with .geojson"`
	Slide  string `short:"s" long:"slide"  description:"Slide image used to scale normalized coordinates to pixels"`
	Minify bool   `short:"m" long:"minify" description:"Write compact GeoJSON"`
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
		opts.Output = strings.TrimSuffix(opts.Input, filepath.Ext(opts.Input)) + ".geojson"
	}

	c := &convert.Native{Minify: opts.Minify}
	if err := c.Convert(context.Background(), opts.Input, opts.Output, opts.Slide); err != nil {
		log.Fatal().Err(err).Str("input", opts.Input).Msg("Conversion failed")
	}

	log.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Msg("GeoJSON saved")
}
