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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/goreg/InputParameters"
	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/registration"
	"github.com/notargets/goreg/transform2D"
)

type RegisterModel struct {
	SourceFile, ReferenceFile string
	ParameterFile             string
	OutputFile                string // transformation
	WarpedFile                string // optional warped source image
	Transform                 string // overrides the parameter file
	Levels                    int
}

// RegisterCmd represents the register command
var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a source image onto a reference image",
	Long: `
Finds the transformation that maps the reference grid into the source image,
coarse to fine over an image pyramid.

goreg register -s source.png -r reference.png -I params.yaml -o result.yaml -w warped.png`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			rm  = &RegisterModel{}
		)
		if rm.SourceFile, err = cmd.Flags().GetString("source"); err != nil {
			panic(err)
		}
		if rm.ReferenceFile, err = cmd.Flags().GetString("reference"); err != nil {
			panic(err)
		}
		if rm.ParameterFile, err = cmd.Flags().GetString("inputParametersFile"); err != nil {
			panic(err)
		}
		rm.OutputFile, _ = cmd.Flags().GetString("output")
		rm.WarpedFile, _ = cmd.Flags().GetString("warped")
		rm.Transform = viper.GetString("register.transform")
		rm.Levels = viper.GetInt("register.levels")
		rp, err := processInput(rm)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err = RunRegister(ctx, rm, rp); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

// processInput reports every missing input before giving up, the example
// parameter file is printed when none was given
func processInput(rm *RegisterModel) (rp *InputParameters.RegistrationParameters, err error) {
	var (
		problems []string
	)
	if len(rm.SourceFile) == 0 || len(rm.ReferenceFile) == 0 {
		problems = append(problems, "must supply a source (-s, --source) and a reference (-r, --reference) image")
	}
	if len(rm.OutputFile) == 0 {
		problems = append(problems, "must supply an output file for the transformation (-o, --output)")
	}
	rp = InputParameters.NewRegistrationParameters()
	if len(rm.ParameterFile) == 0 {
		problems = append(problems, "must supply an input parameters file (-I, --inputParametersFile)")
		fmt.Printf("Example File:%s\n", InputParameters.ExampleFile)
	} else if err = rp.ReadFile(rm.ParameterFile); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) != 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "\nerror: "))
	}
	return rp, nil
}

func RunRegister(ctx context.Context, rm *RegisterModel, rp *InputParameters.RegistrationParameters) (err error) {
	var (
		src, ref *image2D.Image
		nr       *registration.NonrigidRegister
		res      *registration.Result
		out      *os.File
	)
	if len(rm.Transform) != 0 {
		rp.Transform = rm.Transform
	}
	if rm.Levels > 0 {
		rp.Levels = rm.Levels
	}
	rp.Print()
	if nr, err = registration.NewFromParameters(rp); err != nil {
		return
	}
	if src, err = image2D.Load(rm.SourceFile); err != nil {
		return
	}
	if ref, err = image2D.Load(rm.ReferenceFile); err != nil {
		return
	}
	if res, err = nr.Run(ctx, src, ref); err != nil {
		return
	}
	for _, l := range res.Levels {
		if l.Skipped {
			fmt.Printf("block %2d %8s skipped\n", l.Block, l.Size)
			continue
		}
		fmt.Printf("block %2d %8s %6d parameters cost %10.6g -> %10.6g %s\n",
			l.Block, l.Size, l.Parameters, l.Start, l.Final, l.Status)
	}
	if out, err = os.Create(rm.OutputFile); err != nil {
		return
	}
	if err = transform2D.Save(out, res.Transform); err != nil {
		out.Close()
		return
	}
	if err = out.Close(); err != nil {
		return
	}
	if len(rm.WarpedFile) != 0 {
		var (
			ipf    *image2D.InterpolatorFactory
			warped *image2D.Image
		)
		if ipf, err = image2D.NewInterpolatorFactory("bspline:d=3", "mirror"); err != nil {
			return
		}
		if warped, err = transform2D.Warp(src, res.Transform, ipf); err != nil {
			return
		}
		err = image2D.Save(rm.WarpedFile, warped)
	}
	return
}

func init() {
	rootCmd.AddCommand(RegisterCmd)
	RegisterCmd.Flags().StringP("source", "s", "", "source image, moved onto the reference (png, jpeg, tiff, bmp)")
	RegisterCmd.Flags().StringP("reference", "r", "", "reference image")
	RegisterCmd.Flags().StringP("inputParametersFile", "I", "", "YAML file for registration parameters like:\n\t- Transform\n\t- Costs\n\t- Minimizer")
	RegisterCmd.Flags().StringP("output", "o", "", "file receiving the transformation (YAML)")
	RegisterCmd.Flags().StringP("warped", "w", "", "optional file receiving the warped source image")
	RegisterCmd.Flags().StringP("transform", "t", "", "transformation descriptor, overrides the parameter file")
	RegisterCmd.Flags().IntP("levels", "l", 0, "number of resolution levels, overrides the parameter file")
	if err := viper.BindPFlag("register.transform", RegisterCmd.Flags().Lookup("transform")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("register.levels", RegisterCmd.Flags().Lookup("levels")); err != nil {
		panic(err)
	}
}
