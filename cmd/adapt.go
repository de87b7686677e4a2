/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/hpfem/InputParameters"
	"github.com/notargets/hpfem/adapt"
	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/model_problems/LShape"
	"github.com/notargets/hpfem/model_problems/Poisson"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/utils"
)

type ModelHP struct {
	GridFile  string
	ICFile    string
	Model     string
	OutputDir string
	LogLevel  string
	Profile   bool
}

// AdaptCmd represents the adapt command
var AdaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Run the hp-adaptive loop on a model problem",
	Long: `
Runs the adaptivity loop until the error estimate drops below ErrStop or the
number of degrees of freedom reaches NDOFStop. Convergence graphs are written
to the output directory.

hpfem adapt -m poisson -F plate.mesh -I input.yaml -o results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mhp := &ModelHP{
			GridFile:  viper.GetString("gridFile"),
			ICFile:    viper.GetString("inputConditionsFile"),
			Model:     viper.GetString("model"),
			OutputDir: viper.GetString("outputDir"),
			LogLevel:  viper.GetString("logLevel"),
			Profile:   viper.GetBool("profile"),
		}
		return RunAdapt(mhp, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(AdaptCmd)
	AdaptCmd.Flags().StringP("gridFile", "F", "", "Grid file to read in native (.mesh), Gambit (.neu) or YAML (.yaml) format")
	AdaptCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- PolynomialOrder\n\t- ErrStop\n\t- CandList")
	AdaptCmd.Flags().StringP("model", "m", "lshape", "model problem: lshape or poisson")
	AdaptCmd.Flags().StringP("outputDir", "o", "", "directory for the convergence graphs")
	AdaptCmd.Flags().String("logLevel", "info", "debug, info, warn or error")
	AdaptCmd.Flags().Bool("profile", false, "write a CPU profile")
	if err := viper.BindPFlags(AdaptCmd.Flags()); err != nil {
		panic(err)
	}
}

func processInput(mhp *ModelHP) (ip *InputParameters.InputParametersHP, err error) {
	ip = InputParameters.NewInputParametersHP()
	if len(mhp.ICFile) == 0 {
		return
	}
	var data []byte
	if data, err = os.ReadFile(mhp.ICFile); err != nil {
		return
	}
	err = ip.Parse(data)
	return
}

func RunAdapt(mhp *ModelHP, logOut io.Writer) (err error) {
	level, err := utils.ParseLevel(mhp.LogLevel)
	if err != nil {
		return
	}
	logger := utils.NewLogger(logOut, level)
	if mhp.Profile {
		path := mhp.OutputDir
		if path == "" {
			path = "."
		}
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(path), profile.Quiet).Stop()
	}
	var ip *InputParameters.InputParametersHP
	if ip, err = processInput(mhp); err != nil {
		return
	}
	if level <= slog.LevelDebug {
		ip.Print()
	}
	var cfg adapt.Config
	if cfg, err = ip.ToConfig(mhp.OutputDir); err != nil {
		return
	}
	var m *mesh.Mesh
	if len(mhp.GridFile) != 0 {
		if m, err = mesh.Load(mhp.GridFile); err != nil {
			return
		}
	}
	var prob adapt.Problem
	switch strings.ToLower(mhp.Model) {
	case "lshape", "l-shape":
		if prob, err = LShape.NewProblem(m); err != nil {
			return
		}
	case "poisson":
		if m == nil {
			return fmt.Errorf("the poisson model needs a grid file (-F, --gridFile)")
		}
		var bc space.BoundaryConditions
		if bc, err = ip.BoundaryConditions(); err != nil {
			return
		}
		prob = Poisson.NewProblem(m, ip.Source, bc)
	default:
		return fmt.Errorf("unknown model %q, use lshape or poisson", mhp.Model)
	}
	logger.Info("starting adaptivity", "title", ip.Title, "model", mhp.Model,
		"order", cfg.InitialOrder, "candidates", cfg.CandLists.String())
	var c *adapt.Controller
	if c, err = adapt.New(cfg, prob, adapt.WithLogger(logger)); err != nil {
		return
	}
	return c.Run()
}
