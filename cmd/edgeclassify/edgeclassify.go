package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/edgeclassify/server"
	"github.com/cyclopcam/edgeclassify/server/config"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("edgeclassify", "Classify camera frames, and show the result on a small screen")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: config.DefaultFilename})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence of a prediction (0..1)", Default: -1.0})
	aggregation := parser.String("a", "aggregation", &argparse.Options{Help: "Temporal aggregation ('disabled' or 'enabled')", Default: ""})
	modelName := parser.String("", "model", &argparse.Options{Help: "Name of the model, eg mobilenet_v1", Default: ""})
	modelDir := parser.String("", "modeldir", &argparse.Options{Help: "Directory holding the model files", Default: ""})
	recording := parser.String("r", "recording", &argparse.Options{Help: "Score recording to replay", Default: ""})
	cameraImage := parser.String("i", "image", &argparse.Options{Help: "JPEG file to use as the camera frame", Default: ""})
	httpAddr := parser.String("", "http", &argparse.Options{Help: "HTTP listen address, eg :8080", Default: ""})
	rotation := parser.Int("", "rotation", &argparse.Options{Help: "Screen rotation in quarter turns (0..3)", Default: -1})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Log every decision", Default: false})
	writeConfig := parser.Flag("", "writeconfig", &argparse.Options{Help: "Write the effective configuration to the config file, and exit", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof("Config file %v not found. Using defaults", *configFile)
		cfg = config.DefaultConfig()
	} else if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	// Command-line arguments override the config file
	if *threshold >= 0 {
		cfg.Threshold = float32(*threshold)
	}
	if *aggregation != "" {
		cfg.Aggregation = *aggregation
	}
	if *modelName != "" {
		cfg.ModelName = *modelName
	}
	if *modelDir != "" {
		cfg.ModelDir = *modelDir
	}
	if *recording != "" {
		cfg.RecordingFile = *recording
	}
	if *cameraImage != "" {
		cfg.CameraImage = *cameraImage
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *rotation >= 0 {
		cfg.Screen.Rotation = *rotation
	}
	if *verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	if *writeConfig {
		if err := cfg.Save(*configFile); err != nil {
			logger.Errorf("Failed to save config: %v", err)
			os.Exit(1)
		}
		logger.Infof("Wrote %v", *configFile)
		return
	}

	logger.Infof("Threshold %.2f, aggregation %v", cfg.Threshold, cfg.Aggregation)

	srv, err := server.NewServer(logger, cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(cfg.HTTPAddr); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
	}
	err = <-srv.ShutdownComplete
	if err != nil {
		logger.Warnf("Shutdown: %v", err)
	}
	logger.Close()
}
