package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/biomatch-server/internal/config"
	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/service"
)

type matchOptions struct {
	sampleType string
	file       string
	bloodType  string
	hla        []string
	markers    []string
	history    []string
	urgency    string
	age        int
	location   string
	count      int
	format     string
	seed       uint64
	synthesize bool
}

// newMatchCmd ingests one sample and prints a match report
func newMatchCmd() *cobra.Command {
	opts := &matchOptions{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Ingest a sample and print ranked donor matches",
		Long: `Ingest a sample and print ranked donor matches as a report.

The optional --file is hashed to identify the upload; its contents are never parsed.`,
		Example: "  biomatch match --type bone-marrow --blood-type O- --urgency high --count 3 --format yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.sampleType, "type", "t", "", "sample type (stem-cells, blood-cells, bone-marrow, tissue-biopsy, saliva, peripheral-blood)")
	flags.StringVarP(&opts.file, "file", "f", "", "path to the uploaded sample file")
	flags.StringVar(&opts.bloodType, "blood-type", "", "ABO/Rh blood type, e.g. O-")
	flags.StringSliceVar(&opts.hla, "hla", nil, "HLA typing alleles, comma separated")
	flags.StringSliceVar(&opts.markers, "markers", nil, "genetic markers, comma separated")
	flags.StringSliceVar(&opts.history, "history", nil, "medical history entries, comma separated")
	flags.StringVar(&opts.urgency, "urgency", "", "low, medium or high")
	flags.IntVar(&opts.age, "age", 0, "subject age in years")
	flags.StringVar(&opts.location, "location", "", "subject location")
	flags.IntVarP(&opts.count, "count", "n", 5, "number of matches to generate")
	flags.StringVar(&opts.format, "format", "json", "report format: json or yaml")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed; 0 draws one from the clock")
	flags.BoolVar(&opts.synthesize, "synthesize", false, "fabricate attributes that were not supplied")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runMatch(cmd *cobra.Command, opts *matchOptions) error {
	format, err := service.ParseReportFormat(opts.format)
	if err != nil {
		return err
	}

	upload, err := hashUpload(opts.file)
	if err != nil {
		return err
	}

	attrs := domain.SampleAttributes{
		HLATyping:      opts.hla,
		BloodType:      opts.bloodType,
		GeneticMarkers: opts.markers,
		MedicalHistory: opts.history,
		Age:            opts.age,
		Location:       opts.location,
	}
	if opts.urgency != "" {
		if attrs.Urgency, err = domain.ParseUrgency(opts.urgency); err != nil {
			return err
		}
	}

	lite := config.LoadLiteConfig()
	matching := lite.MatchingConfig()
	if cmd.Flags().Changed("seed") {
		matching.Seed = opts.seed
	}
	if cmd.Flags().Changed("synthesize") {
		matching.SynthesizeAttributes = opts.synthesize
	}

	logger := cliLogger(cmd, lite)
	engine := service.NewEngine(matching, logger)

	ctx := cmd.Context()
	sample, err := engine.Ingest(ctx, upload, opts.sampleType, attrs)
	if err != nil {
		return err
	}
	results, err := engine.FindMatches(ctx, sample, opts.count)
	if err != nil {
		return err
	}

	reports := service.NewReportGenerator(engine.ListModels())
	return reports.Encode(cmd.OutOrStdout(), reports.Generate(sample, results), format)
}

// hashUpload identifies the file at path by size and SHA-256. An empty path is an empty upload.
func hashUpload(path string) (domain.Upload, error) {
	hasher := sha256.New()
	if path == "" {
		return domain.Upload{SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(hasher, f)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("reading upload: %w", err)
	}
	return domain.Upload{
		Filename: filepath.Base(path),
		Size:     size,
		SHA256:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// cliLogger writes warnings and above to stderr unless BIOMATCH_LOG_LEVEL says otherwise
func cliLogger(cmd *cobra.Command, lite *config.LiteConfig) *logrus.Logger {
	cfg := lite.Logging()
	if os.Getenv("BIOMATCH_LOG_LEVEL") == "" {
		cfg.Level = "warn"
	}
	cfg.Format = "text"
	logger := config.NewLogger(cfg)
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}
