package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/render"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/video"
)

var analyzeOpts struct {
	pdf       string
	chart     string
	timeline  string
	save      bool
	owner     string
	handledBy string
}

var analyzeImageCmd = &cobra.Command{
	Use:   "analyze-image <path>",
	Short: "Analyse one accident image and print its case report",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeImage,
}

var analyzeVideoCmd = &cobra.Command{
	Use:   "analyze-video <path>",
	Short: "Analyse an accident video and print its case report",
	Long: "Samples the video with ffmpeg, analyses every sampled frame, and prints the\n" +
		"aggregated report including the timeline and chain of custody.",
	Args: cobra.ExactArgs(1),
	RunE: runAnalyzeVideo,
}

func init() {
	for _, c := range []*cobra.Command{analyzeImageCmd, analyzeVideoCmd} {
		c.Flags().StringVar(&analyzeOpts.pdf, "pdf", "", "also write a PDF report to this path")
		c.Flags().StringVar(&analyzeOpts.chart, "chart", "", "also write a PNG chart to this path")
		c.Flags().BoolVar(&analyzeOpts.save, "save", false, "store the case in the database")
		c.Flags().StringVar(&analyzeOpts.owner, "owner", db.DefaultOwner, "investigator the saved case belongs to")
	}
	analyzeVideoCmd.Flags().StringVar(&analyzeOpts.timeline, "timeline", "", "also write an HTML severity timeline to this path")
	analyzeVideoCmd.Flags().StringVar(&analyzeOpts.handledBy, "handled-by", video.DefaultHandledBy, "custodian recorded in the chain of custody")
}

func runAnalyzeImage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flush, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	eng, _, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	rep, err := eng.RunFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if analyzeOpts.pdf != "" {
		annotated, _ := os.ReadFile(filepath.Join(cfg.GetStorageDir(), rep.Evidence.AnnotatedImage))
		if err := writeOutput(analyzeOpts.pdf, func(w io.Writer) error { return render.CasePDF(w, rep, annotated) }); err != nil {
			return err
		}
	}
	if analyzeOpts.chart != "" {
		if err := writeOutput(analyzeOpts.chart, func(w io.Writer) error { return render.FaultPNG(w, rep) }); err != nil {
			return err
		}
	}
	if analyzeOpts.save {
		if err := withStore(cfg, func(store *db.DB) error {
			return store.SaveImageCase(cmd.Context(), rep, analyzeOpts.owner, time.Now())
		}); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), rep)
}

func runAnalyzeVideo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flush, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	_, pipeline, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	rep, err := pipeline.Run(cmd.Context(), args[0], analyzeOpts.handledBy)
	if err != nil {
		return err
	}
	if err := writeVideoOutputs(rep); err != nil {
		return err
	}
	if analyzeOpts.save {
		if err := withStore(cfg, func(store *db.DB) error {
			return store.SaveVideoCase(cmd.Context(), rep, analyzeOpts.owner, time.Now())
		}); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), rep)
}

func writeVideoOutputs(rep *report.VideoReport) error {
	if analyzeOpts.pdf != "" {
		if err := writeOutput(analyzeOpts.pdf, func(w io.Writer) error { return render.VideoPDF(w, rep) }); err != nil {
			return err
		}
	}
	if analyzeOpts.chart != "" {
		if err := writeOutput(analyzeOpts.chart, func(w io.Writer) error { return render.SeverityPNG(w, rep) }); err != nil {
			return err
		}
	}
	if analyzeOpts.timeline != "" {
		if err := writeOutput(analyzeOpts.timeline, func(w io.Writer) error { return render.TimelineHTML(w, rep) }); err != nil {
			return err
		}
	}
	return nil
}

func withStore(cfg *config.Config, fn func(*db.DB) error) error {
	store, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// writeOutput creates path and hands it to fn, removing the file again
// when fn fails.
func writeOutput(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
