package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/model"
)

// timingFlags are the mode flags shared by commands that calculate a modeline.
type timingFlags struct {
	width           int
	height          int
	refresh         float64
	algorithm       string
	reducedBlanking bool
}

func addTimingFlags(cmd *cobra.Command, f *timingFlags) {
	cmd.Flags().IntVarP(&f.width, "width", "W", 0,
		"Horizontal resolution in pixels (default from config)")
	cmd.Flags().IntVarP(&f.height, "height", "H", 0,
		"Vertical resolution in pixels (default from config)")
	cmd.Flags().Float64VarP(&f.refresh, "refresh", "r", 0,
		"Refresh rate in Hz (default from config)")
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "",
		"Timing algorithm: cvt, cvt-rb, cvt-rbv2, reduced-blanking, custom")
	cmd.Flags().BoolVar(&f.reducedBlanking, "reduced-blanking", false,
		"Use the reduced-blanking formula regardless of --algorithm")
}

// request merges the flags the user set over the configured defaults.
func (f *timingFlags) request(cmd *cobra.Command) (model.TimingRequest, error) {
	req := cfg.TimingRequest()

	if cmd.Flags().Changed("width") {
		req.Width = f.width
	}
	if cmd.Flags().Changed("height") {
		req.Height = f.height
	}
	if cmd.Flags().Changed("refresh") {
		req.Refresh = f.refresh
	}
	if cmd.Flags().Changed("algorithm") {
		alg, err := model.ParseAlgorithm(f.algorithm)
		if err != nil {
			return model.TimingRequest{}, err
		}
		req.Algorithm = alg
	}
	if cmd.Flags().Changed("reduced-blanking") {
		req.ReducedBlanking = f.reducedBlanking
	}

	if err := req.Validate(); err != nil {
		return model.TimingRequest{}, err
	}
	return req, nil
}

// forceEnable returns the --force flag when given, else the configured default.
func forceEnable(cmd *cobra.Command, flag bool) bool {
	if cmd.Flags().Changed("force") {
		return flag
	}
	return cfg.Defaults.ForceEnable
}

// confirm asks a yes/no question on in and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
