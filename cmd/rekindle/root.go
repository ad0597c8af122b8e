package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"rekindle/internal/metadata"
	"rekindle/internal/scan"
)

var (
	runtimeVersion string
	tiering        bool
	verbose        int
)

var rootCmd = &cobra.Command{
	Use:          "rekindle",
	Short:        "Inspect assembly images and probe live-reload capabilities",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		commonlog.Configure(verbose, nil)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runtimeVersion, "runtime-version", "8.0", "guest runtime version (major.minor)")
	rootCmd.PersistentFlags().BoolVar(&tiering, "tiering", false, "assume the guest runtime tiers prepared entries")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")
}

func guestRuntime() (metadata.Runtime, error) {
	major, minor, ok := strings.Cut(runtimeVersion, ".")
	maj, err := strconv.Atoi(major)
	if err != nil || !ok {
		return metadata.Runtime{}, fmt.Errorf("bad runtime version %q", runtimeVersion)
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return metadata.Runtime{}, fmt.Errorf("bad runtime version %q", runtimeVersion)
	}
	return metadata.Runtime{
		Version:        metadata.Version{Major: maj, Minor: min},
		TieringEnabled: tiering,
	}, nil
}

// loadImage reads one .rkimg file into a fresh domain and returns the
// scanned units alongside the loaded assembly.
func loadImage(path string) (*metadata.Assembly, []*scan.Unit, error) {
	rt, err := guestRuntime()
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	asm, err := metadata.Load(f, metadata.NewDomain(rt))
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	units := scan.NewScanner().FindControls(asm)
	return asm, units, nil
}
