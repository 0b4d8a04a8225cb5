// dlg: reconstructs a private training batch from its gradients
//
// Usage:
//
//	dlg --config=dlg.yaml --epochs=300 --measure=gaussian --runs=3
package main

import (
	"flag"
	"fmt"
	"os"

	"gradleak/attack"
	"gradleak/dataset"
	"gradleak/nn"
	"gradleak/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

var (
	configFile  = flag.String("config", "", "YAML configuration file")
	epochs      = flag.Int("epochs", 0, "Override num_epochs")
	batchSize   = flag.Int("batch", 0, "Override batch_size")
	measureName = flag.String("measure", "", "Override measure: euclidean, gaussian")
	dataName    = flag.String("data", "", "Override data: CIFAR, MNIST, Omniglot, Synthetic")
	dataRoot    = flag.String("data-root", "", "Override data_root")
	initType    = flag.String("init", "", "Override init_type: uniform, gaussian, gaussian_shift")
	q           = flag.Float64("Q", 0, "Override the gaussian bandwidth Q")
	valSize     = flag.Int("val", 0, "Override val_size")
	learnRate   = flag.Float64("lr", 0, "Override lr")
	seed        = flag.Uint64("seed", 0, "Override seed")
	device      = flag.String("device", "", "Override device: cpu, cuda")
	weightsIn   = flag.String("weights", "", "Classifier weights file (JSON)")
	weightsOut  = flag.String("save-weights", "", "Write the classifier weights used for the run (JSON)")
	runs        = flag.Int("runs", 1, "Number of reconstruction runs")
	verbose     = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.SetVerbose(*verbose)
	if err := run(); err != nil {
		utils.Log.WithError(err).Error("dlg failed")
		os.Exit(1)
	}
}

func run() error {
	cfg := utils.DefaultConfig()
	if *configFile != "" {
		loaded, err := utils.LoadConfig(*configFile)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	cfg.ApplyOverrides(utils.Overrides{
		NumEpochs: *epochs,
		BatchSize: *batchSize,
		Measure:   *measureName,
		Data:      *dataName,
		DataRoot:  *dataRoot,
		InitType:  *initType,
		Q:         *q,
		ValSize:   *valSize,
		LR:        *learnRate,
		Seed:      *seed,
		Device:    *device,
		Weights:   *weightsIn,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *runs <= 0 {
		return fmt.Errorf("%w: runs must be positive", utils.ErrInvalidConfiguration)
	}

	utils.Log.WithFields(logrus.Fields{
		"epochs":  cfg.NumEpochs,
		"batch":   cfg.BatchSize,
		"measure": cfg.MeasureKind,
		"data":    cfg.DataKind,
		"init":    cfg.InitDist,
		"Q":       cfg.Q,
		"val":     cfg.ValSize,
		"lr":      cfg.LR,
		"seed":    cfg.Seed,
	}).Info("configuration")

	rng := rand.New(rand.NewSource(cfg.Seed))

	src, err := dataset.Open(cfg.DataKind, cfg.DataRoot)
	if err != nil {
		return err
	}

	net, err := nn.NewLeNet(nn.LeNetConfig{
		Channels:  3,
		ImageSize: cfg.ImageSize,
		Width:     cfg.Width,
		Classes:   cfg.Classes,
	})
	if err != nil {
		return err
	}
	if cfg.Weights != "" {
		mw, err := utils.LoadWeights(cfg.Weights)
		if err != nil {
			return err
		}
		if err := nn.ImportWeights(net, mw); err != nil {
			return err
		}
	} else {
		nn.InitDefault(net, rng)
	}
	if *weightsOut != "" {
		if err := utils.SaveWeights(*weightsOut, nn.ExportWeights(net)); err != nil {
			return err
		}
	}

	exp, err := attack.New(&cfg, net, src, rng)
	if err != nil {
		return err
	}
	utils.Log.WithField("indices", exp.Indices()).Info("ground truth")

	for r := 0; r < *runs; r++ {
		utils.Log.WithField("run", r).Info("starting reconstruction")
		if err := exp.Train(); err != nil {
			return fmt.Errorf("run %d: %w", r, err)
		}
	}

	losses := exp.Losses()
	for r := 0; r < losses.Runs(); r++ {
		last := len(losses.PSNR[r]) - 1
		if last < 0 {
			continue
		}
		utils.Log.WithFields(logrus.Fields{
			"run":  r,
			"psnr": losses.PSNR[r][last],
			"ssim": losses.SSIM[r][last],
			"mse":  losses.MSE[r][last],
		}).Info("final scores")
	}
	utils.PrintTimingStats(exp.Stats(), cfg.NumEpochs*(*runs))
	return nil
}
