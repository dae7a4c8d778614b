package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/woozymasta/sectra2qupath/internal/config"
	"github.com/woozymasta/sectra2qupath/internal/history"
	"github.com/woozymasta/sectra2qupath/internal/locate"
	"github.com/woozymasta/sectra2qupath/internal/logger"
	"github.com/woozymasta/sectra2qupath/internal/processor"
	"github.com/woozymasta/sectra2qupath/internal/report"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string        `short:"c" long:"config"        env:"CONFIG_FILE"   description:"Path to configuration file"`
	Project      string        `short:"P" long:"project"       env:"PROJECT_DIR"   description:"Project directory, relative report and history paths resolve against it"`
	DICOM        string        `short:"d" long:"dicom"                             description:"DICOM annotation file to use instead of searching (single slide only)"`
	Scheme       string        `short:"s" long:"scheme"        env:"COLOR_SCHEME"  description:"Color scheme" choice:"geometry" choice:"label" choice:"sequential" choice:"random" choice:"custom"`
	Filter       string        `short:"f" long:"filter"        env:"LABEL_FILTER"  description:"Comma separated label keywords, only matching annotations are imported"`
	Converter    string        `long:"converter"               env:"CONVERTER"     description:"Converter implementation" choice:"external" choice:"native"`
	Python       string        `long:"python"                  env:"PYTHON"        description:"Python interpreter for the external converter"`
	Script       string        `long:"script"                  env:"CONVERT_SCRIPT" description:"Converter script for the external converter"`
	Timeout      time.Duration `long:"timeout"                 env:"CONVERT_TIMEOUT" description:"Limit for one conversion, 0 disables"`
	Ambiguous    string        `long:"ambiguous"               description:"What to do with several DICOM candidates" choice:"first" choice:"fail"`
	ExtractMode  string        `long:"extract-mode"            description:"GeoJSON property reader" choice:"auto" choice:"strict" choice:"recover"`
	OutputDir    string        `short:"o" long:"output-dir"    env:"OUTPUT_DIR"    description:"Directory for converted files, defaults to the slide directory"`
	ReportDir    string        `short:"r" long:"report-dir"    env:"REPORT_DIR"    description:"Directory for reports"`
	Summary      string        `long:"summary"                 description:"Write a machine readable summary" choice:"json" choice:"yaml"`
	History      string        `long:"history"                 env:"HISTORY_DB"    description:"SQLite database recording import runs"`
	NoClassify   bool          `long:"no-classify"             description:"Do not set classifications"`
	NoMeasure    bool          `long:"no-measurements"         description:"Do not append measurements to names"`
	NoReport     bool          `long:"no-report"               description:"Do not write reports"`
	FailMissing  bool          `long:"fail-missing"            description:"Count slides without DICOM file as failed instead of skipped"`
	SkipImported bool          `long:"skip-imported"           description:"Skip slides whose last recorded import succeeded"`
	Minify       bool          `short:"m" long:"minify"        description:"Write compact GeoJSON"`
	Preview      bool          `long:"preview"                 description:"Render a WebP preview per slide"`
}

func main() {
	os.Exit(run())
}

func run() int {
	// optional, environment variables feed the option env tags
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] SLIDE|DIR..."
	args, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Error().Err(err).Str("path", opts.ConfigFile).Msg("Failed to load configuration")
		return 1
	}
	opts.apply(cfg)

	if len(args) == 0 {
		if opts.Project == "" {
			log.Error().Msg("No slides given")
			return 1
		}
		args = []string{opts.Project}
	}

	slides, err := locate.Slides(args)
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect slides")
		return 1
	}
	if len(slides) == 0 {
		log.Error().Strs("inputs", args).Msg("No slide images found")
		return 1
	}
	if opts.DICOM != "" && len(slides) != 1 {
		log.Error().Int("slides", len(slides)).Msg("--dicom needs exactly one slide")
		return 1
	}

	popts, err := processor.OptionsFromConfig(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}
	popts.DICOM = opts.DICOM
	popts.Project = opts.Project
	popts.SkipImported = opts.SkipImported

	if cfg.History != "" {
		store, err := history.Open(context.Background(), cfg.History)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.History).Msg("Failed to open history")
			return 1
		}
		defer func() { _ = store.Close() }()
		popts.History = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// only this goroutine logs progress
	events := make(chan processor.Progress)
	popts.Progress = func(p processor.Progress) { events <- p }

	p, err := processor.New(popts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create processor")
		return 1
	}

	log.Info().
		Int("slides", len(slides)).
		Str("converter", cfg.Converter).
		Str("scheme", cfg.ColorScheme).
		Str("filter", cfg.Filter).
		Msg("Starting importer")

	type outcome struct {
		sum *report.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := p.Run(ctx, slides)
		close(events)
		done <- outcome{sum, err}
	}()

	for ev := range events {
		log.Info().
			Int("done", ev.Done).
			Int("total", ev.Total).
			Str("slide", ev.Slide).
			Str("status", string(ev.Status)).
			Msg("Progress")
	}

	res := <-done
	if res.err != nil {
		log.Error().Err(res.err).Msg("Import aborted")
		return 1
	}

	if res.sum.ReportPath != "" {
		log.Info().Str("report", res.sum.ReportPath).Msg("Report written")
	}
	if res.sum.Failed > 0 || res.sum.Cancelled {
		return 2
	}
	return 0
}

// apply writes command line overrides into cfg and resolves project relative paths.
func (o *Options) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.ColorScheme, o.Scheme)
	set(&cfg.Filter, o.Filter)
	set(&cfg.Converter, o.Converter)
	set(&cfg.Python, o.Python)
	set(&cfg.Script, o.Script)
	set(&cfg.Ambiguous, o.Ambiguous)
	set(&cfg.ExtractMode, o.ExtractMode)
	set(&cfg.OutputDir, o.OutputDir)
	set(&cfg.Report.Dir, o.ReportDir)
	set(&cfg.Report.SummaryFormat, o.Summary)
	set(&cfg.History, o.History)

	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.NoClassify {
		cfg.ApplyClassification = false
	}
	if o.NoMeasure {
		cfg.IncludeMeasurements = false
	}
	if o.NoReport {
		cfg.Report.Enabled = false
	}
	if o.FailMissing {
		cfg.SkipMissingDICOM = false
	}
	if o.Minify {
		cfg.Minify = true
	}
	if o.Preview {
		cfg.Preview = true
	}

	if o.SkipImported && cfg.History == "" {
		cfg.History = "sectra_import_history.db"
	}

	if o.Project != "" {
		for _, p := range []*string{&cfg.Report.Dir, &cfg.History} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(o.Project, *p)
			}
		}
	}
}
