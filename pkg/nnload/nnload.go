package nnload

// Package nnload finds a model on disk (downloading it if necessary), reads its
// class labels, and opens the device that will produce its scores.

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/edgeclassify/pkg/iox"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/nnaccel"
	"github.com/cyclopcam/logs"
)

// Default dimensions of a classification model input
const (
	DefaultInputWidth  = 224
	DefaultInputHeight = 224
)

type Options struct {
	ModelDir      string        // eg /var/lib/edgeclassify/models
	ModelName     string        // eg "mobilenet_v1". Files are ModelName.json and (optionally) ModelName.txt
	DownloadURL   string        // If not empty, missing model files are fetched from here
	RecordingFile string        // Score recording to replay. If empty or missing, the device is NullDevice.
	ReplayLatency time.Duration // Simulated inference time of the replay device
}

// Model is a loaded classifier
type Model struct {
	Config *nn.ModelConfig
	Labels *nn.LabelTable
	Device nnaccel.Device
}

func (m *Model) Close() {
	m.Device.Close()
}

func downloadFile(srcUrl, targetFile string) error {
	resp, err := http.DefaultClient.Get(srcUrl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP error %v", resp.Status)
	}
	return iox.WriteStreamToFile(targetFile, resp.Body)
}

// If the model config is not yet downloaded, then download it now.
// Returns immediately if the file is already on disk.
func DownloadModel(logs logs.Log, baseUrl, modelDir, modelName string) error {
	diskPath := filepath.Join(modelDir, modelName+".json")
	networkUrl := baseUrl + "/" + modelName + ".json"
	if _, err := os.Stat(diskPath); os.IsNotExist(err) {
		logs.Infof("Downloading %v to %v", networkUrl, diskPath)
		if err := downloadFile(networkUrl, diskPath); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return nil
}

// LoadModel reads the model config and class labels, and opens its device.
// A model without a score recording is still returned, but its device reports
// that it is not loaded, so every cycle produces "no confident prediction".
func LoadModel(logs logs.Log, opt Options) (*Model, error) {
	if opt.DownloadURL != "" {
		if err := DownloadModel(logs, opt.DownloadURL, opt.ModelDir, opt.ModelName); err != nil {
			return nil, fmt.Errorf("Download failed: %w", err)
		}
	}

	fullPathBase := filepath.Join(opt.ModelDir, opt.ModelName)
	config, err := nn.LoadModelConfig(fullPathBase + ".json")
	if err != nil {
		return nil, err
	}

	// A class file overrides the classes inside the JSON config
	classes, err := nn.LoadClassFile(fullPathBase + ".txt")
	if err == nil {
		config.Classes = classes
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	labels, err := nn.NewLabelTable(config.Classes)
	if err != nil {
		return nil, fmt.Errorf("Model %v: %w", opt.ModelName, err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		config.Width = DefaultInputWidth
		config.Height = DefaultInputHeight
	}

	model := &Model{
		Config: config,
		Labels: labels,
	}

	if opt.RecordingFile == "" {
		logs.Warnf("No score source for model '%v'. All cycles will report 'not loaded'", opt.ModelName)
		model.Device = nnaccel.NewNullDevice(config)
		return model, nil
	}

	rec, err := nn.LoadScoreRecording(opt.RecordingFile)
	if errors.Is(err, os.ErrNotExist) {
		logs.Warnf("Score recording %v not found. All cycles will report 'not loaded'", opt.RecordingFile)
		model.Device = nnaccel.NewNullDevice(config)
		return model, nil
	} else if err != nil {
		return nil, err
	}
	device, err := nnaccel.NewReplayDevice(config, rec, opt.ReplayLatency)
	if err != nil {
		return nil, err
	}
	logs.Infof("Replaying %v frames from %v", len(rec.Frames), opt.RecordingFile)
	model.Device = device
	return model, nil
}
