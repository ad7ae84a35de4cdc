package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagemsg/internal/audio"
	"pagemsg/internal/config"
	"pagemsg/internal/domain"
	"pagemsg/internal/store"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check audio tools, storage and configuration",
		Long:  "Runs diagnostic checks on pagemsg prerequisites: config, audio binaries, driver selection, storage directory and metadata file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "pagemsg doctor")
	fmt.Fprintln(out, "==============")

	var results []checkResult

	cfg, err := config.Load()
	if err != nil {
		results = append(results, checkResult{"Config", "FAIL", err.Error()})
	} else {
		results = append(results, checkResult{"Config", "PASS", configSource()})
		results = append(results, checkBinary("Record command", cfg.Audio.RecordCommand, cfg.Audio.Driver == "alsa"))
		results = append(results, checkBinary("Play command", cfg.Audio.PlayCommand, cfg.Audio.Driver == "alsa"))
		results = append(results, checkBinary("Transcoder", cfg.Transcode.Command, cfg.Transcode.Engine == "ffmpeg" && cfg.Audio.Format != "pcm"))
		results = append(results, checkDriver(cfg))
		results = append(results, checkWritableDir("Storage dir", cfg.Storage.Dir))
		results = append(results, checkMetadata(cfg.Storage.MetadataFile))
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func configSource() string {
	if path := os.Getenv(config.ConfigFileEnv); path != "" {
		return path
	}
	return "defaults and environment"
}

// checkBinary fails only when the binary is required by the selected setup.
func checkBinary(label string, name string, required bool) checkResult {
	path, err := exec.LookPath(name)
	if err != nil {
		if required {
			return checkResult{label, "FAIL", fmt.Sprintf("%s not found in PATH", name)}
		}
		return checkResult{label, "WARN", fmt.Sprintf("%s not found in PATH", name)}
	}
	return checkResult{label, "PASS", path}
}

func checkDriver(cfg config.Config) checkResult {
	selectCfg := audio.SelectConfig{
		Preferred:     cfg.Audio.Driver,
		InputDevice:   cfg.Audio.InputDevice,
		OutputDevice:  cfg.Audio.OutputDevice,
		RecordCommand: cfg.Audio.RecordCommand,
		PlayCommand:   cfg.Audio.PlayCommand,
	}
	logger := zap.NewNop().Sugar()
	driver, err := audio.SelectDriver(selectCfg, audio.Candidates(selectCfg, logger), logger)
	if err != nil {
		return checkResult{"Audio driver", "FAIL", err.Error()}
	}
	if driver.Name() == "noop" && cfg.Audio.Driver != "noop" {
		return checkResult{"Audio driver", "WARN", "no audio backend available, using noop"}
	}
	return checkResult{"Audio driver", "PASS", driver.Name()}
}

func checkWritableDir(label string, dir string) checkResult {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return checkResult{label, "FAIL", err.Error()}
	}
	probe, err := os.CreateTemp(dir, ".pagemsg_doctor_")
	if err != nil {
		return checkResult{label, "FAIL", fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return checkResult{label, "PASS", dir}
}

// checkMetadata only reads the ledger; a corrupt file is reported, never moved.
func checkMetadata(path string) checkResult {
	count, err := store.Inspect(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return checkResult{"Metadata", "PASS", fmt.Sprintf("%s (not created yet)", path)}
	case errors.Is(err, domain.ErrStoreCorrupted):
		return checkResult{"Metadata", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	case err != nil:
		return checkResult{"Metadata", "FAIL", err.Error()}
	}
	return checkResult{"Metadata", "PASS", fmt.Sprintf("%s (%d records)", path, count)}
}
