package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/sectra2qupath/internal/dicomxml"
	"github.com/woozymasta/sectra2qupath/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Input  string `short:"i" long:"input"  description:"DICOM file" required:"true"`
	Output string `short:"o" long:"output" description:"XML output path, defaults to the input name with .xml"`
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
		opts.Output = strings.TrimSuffix(opts.Input, filepath.Ext(opts.Input)) + ".xml"
	}

	ds, err := dicomxml.ReadFile(opts.Input)
	if err != nil {
		log.Fatal().Err(err).Str("input", opts.Input).Msg("Failed to read DICOM")
	}
	if err := dicomxml.WriteFile(opts.Output, ds); err != nil {
		log.Fatal().Err(err).Str("output", opts.Output).Msg("Failed to write XML")
	}

	log.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Int("elements", len(ds.Elements)).
		Msg("DICOM dump saved")
}
