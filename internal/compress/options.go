package compress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"vodwatch/internal/config"
	"vodwatch/internal/services"
	"vodwatch/internal/verify"
)

// Options describes one compression run.
type Options struct {
	Directory      string
	Recursive      bool
	CRF            int
	Preset         string
	DeleteMode     string
	TargetDir      string
	AllowVideoOnly bool
	Tolerance      time.Duration
	MinTargetSize  int64
	DryRun         bool
	SourceExt      string
	TargetExt      string
}

// OptionsFromConfig seeds run options from the compression section.
func OptionsFromConfig(cfg *config.Config, directory string) Options {
	if strings.TrimSpace(directory) == "" {
		directory = cfg.Paths.OutputDir
	}
	return Options{
		Directory:      directory,
		CRF:            cfg.Compression.DefaultCRF,
		Preset:         cfg.Compression.DefaultPreset,
		DeleteMode:     cfg.Compression.DeleteMode,
		TargetDir:      cfg.Paths.CompressedDir,
		AllowVideoOnly: cfg.Compression.AllowVideoOnly,
		Tolerance:      cfg.Tolerance(),
		MinTargetSize:  verify.DefaultMinTargetSize,
		SourceExt:      cfg.Compression.SourceExtension,
		TargetExt:      cfg.Compression.TargetExtension,
	}
}

// Validate checks the options before any file is touched.
func (o *Options) Validate() error {
	o.SourceExt = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(o.SourceExt)), ".")
	if o.SourceExt == "" {
		o.SourceExt = "ts"
	}
	o.TargetExt = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(o.TargetExt)), ".")
	if o.TargetExt == "" {
		o.TargetExt = "mp4"
	}
	o.Preset = strings.ToLower(strings.TrimSpace(o.Preset))
	if o.DeleteMode == "" {
		o.DeleteMode = config.DeletePrompt
	}

	if err := config.ValidateCRF(o.CRF); err != nil {
		return services.Wrap(services.ErrValidation, "compress", "validate options", "", err)
	}
	if err := config.ValidatePreset(o.Preset); err != nil {
		return services.Wrap(services.ErrValidation, "compress", "validate options", "", err)
	}
	switch o.DeleteMode {
	case config.DeleteYes, config.DeletePrompt, config.DeleteNo:
	default:
		return services.Wrap(services.ErrValidation, "compress", "validate options",
			fmt.Sprintf("delete mode %q must be yes, prompt, or no", o.DeleteMode), nil)
	}
	if o.SourceExt == o.TargetExt {
		return services.Wrap(services.ErrValidation, "compress", "validate options",
			"source and target extensions must differ", nil)
	}
	if o.Tolerance < 0 {
		return services.Wrap(services.ErrValidation, "compress", "validate options", "tolerance must not be negative", nil)
	}
	info, err := os.Stat(o.Directory)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "compress", "validate options", o.Directory, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "compress", "validate options",
			fmt.Sprintf("%s is not a directory", o.Directory), nil)
	}
	return nil
}
