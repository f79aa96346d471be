package preflight

import (
	"context"

	"vodwatch/internal/config"
	"vodwatch/internal/deps"
	"vodwatch/internal/procrun"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The encoder check only runs when ffmpeg itself was found.
func RunAll(ctx context.Context, cfg *config.Config, exec procrun.Executor) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckChannels(cfg))
	results = append(results, CheckDirectoryAccess("Recording directory", cfg.Paths.OutputDir))
	if cfg.Paths.CompressedDir != "" {
		results = append(results, CheckDirectoryAccess("Compressed directory", cfg.Paths.CompressedDir))
	}
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	ffmpegFound := false
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
		if status.Name == "ffmpeg" && status.Available {
			ffmpegFound = true
		}
	}
	if ffmpegFound && exec != nil {
		results = append(results, fromStatus(deps.CheckEncoder(ctx, exec, cfg.Compression.FFmpegBinary, deps.HEVCEncoder)))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fromStatus(status deps.Status) Result {
	if status.Available {
		detail := status.Command
		if detail == "" {
			detail = "available"
		}
		return Result{Name: status.Name, Passed: true, Detail: detail}
	}
	return Result{Name: status.Name, Detail: status.Detail}
}
