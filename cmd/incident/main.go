// Command incident analyses traffic accident images and videos and serves
// the resulting forensic cases over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/engine"
	"github.com/banshee-data/incident.report/internal/httputil"
	"github.com/banshee-data/incident.report/internal/inference"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/version"
	"github.com/banshee-data/incident.report/internal/video"
)

var (
	configPath string
	envFiles   []string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "incident",
	Short: "Forensic fault and severity reasoning for traffic incidents",
	Long: "incident analyses accident images and videos: it detects the vehicles and people\n" +
		"involved, allocates fault, scores severity and keeps an auditable case record.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON or YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "verbose development logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeImageCmd)
	rootCmd.AddCommand(analyzeVideoCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.Version = version.String()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then dotenv files, then the process
// environment. Later sources win.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if debugFlag {
		t := true
		cfg.Debug = &t
	}
	return cfg, nil
}

// setupLogger routes package logging through zap. The returned func flushes it.
func setupLogger(cfg *config.Config) (func(), error) {
	logger, err := monitoring.InitLogger(cfg.GetDebug())
	if err != nil {
		return nil, err
	}
	return func() { _ = logger.Sync() }, nil
}

// collaborators picks the perception backends. Without a perception URL the
// engine runs on static collaborators that detect nothing.
func collaborators(cfg *config.Config) engine.Collaborators {
	var c engine.Collaborators
	if url := cfg.GetPerceptionURL(); url != "" {
		client := inference.NewClient(url, cfg.GetPerceptionAPIKey(), httputil.NewStandardClient(cfg.GetModelTimeout()))
		c = engine.Collaborators{
			Detector:    inference.Detector{Client: client},
			Captioner:   inference.Captioner{Client: client},
			Analyzer:    inference.Analyzer{Client: client},
			PlateReader: inference.PlateReader{Client: client},
		}
	} else {
		monitoring.Warnf("[Main] no perception_url configured: running with offline collaborators")
		static := inference.Static{}
		c = engine.Collaborators{Detector: static, Captioner: static, Analyzer: static, PlateReader: static}
	}
	if key := cfg.GetOpenAIAPIKey(); key != "" {
		c.Captioner = inference.NewOpenAICaptioner(key, cfg.GetOpenAIBaseURL(), cfg.GetOpenAIModel(), httputil.NewStandardClient(cfg.GetModelTimeout()))
		monitoring.Logf("[Main] captioning with %s", cfg.GetOpenAIModel())
	}
	return c
}

// buildEngine wires the image engine and the video pipeline that drives it.
func buildEngine(cfg *config.Config) (*engine.Engine, *video.Pipeline, error) {
	eng, err := engine.New(collaborators(cfg), engine.Options{
		StorageDir: cfg.GetStorageDir(),
		Hasher:     engine.HasherByName(cfg.GetHasher()),
		Cache:      engine.NewResultCache(cfg.GetCacheSize()),
	})
	if err != nil {
		return nil, nil, err
	}
	pipeline := &video.Pipeline{
		Engine:     eng,
		Open:       video.FFmpegOpener(cfg.GetFFmpegPath(), cfg.GetFFprobePath()),
		StorageDir: cfg.GetStorageDir(),
		TargetFPS:  cfg.GetTargetFPS(),
		Workers:    cfg.GetWorkers(),
	}
	return eng, pipeline, nil
}
