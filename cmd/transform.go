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
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/transform2D"
)

type TransformModel struct {
	InputFile, TransformFile, OutputFile string
	Interpolator, Boundary               string
}

// TransformCmd represents the transform command
var TransformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Apply a saved transformation to an image",
	Long: `
Resamples an image with a transformation written by the register command

goreg transform -i source.png -t result.yaml -o warped.png`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			tm  = &TransformModel{}
		)
		tm.InputFile, _ = cmd.Flags().GetString("input")
		tm.TransformFile, _ = cmd.Flags().GetString("transformFile")
		tm.OutputFile, _ = cmd.Flags().GetString("output")
		tm.Interpolator, _ = cmd.Flags().GetString("interp")
		tm.Boundary, _ = cmd.Flags().GetString("bc")
		if len(tm.InputFile) == 0 || len(tm.TransformFile) == 0 || len(tm.OutputFile) == 0 {
			fmt.Printf("error: must supply an input image (-i), a transformation (-t) and an output image (-o)\n")
			os.Exit(1)
		}
		if err = RunTransform(tm); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func RunTransform(tm *TransformModel) (err error) {
	var (
		img, warped *image2D.Image
		ipf         *image2D.InterpolatorFactory
		t           transform2D.Transformation
		in          *os.File
	)
	if ipf, err = image2D.NewInterpolatorFactory(tm.Interpolator, tm.Boundary); err != nil {
		return
	}
	if in, err = os.Open(tm.TransformFile); err != nil {
		return
	}
	defer in.Close()
	if t, err = transform2D.Load(in); err != nil {
		return
	}
	if img, err = image2D.Load(tm.InputFile); err != nil {
		return
	}
	if img.Size != t.Size() {
		return fmt.Errorf("image %s has size %s, the transformation %s", tm.InputFile, img.Size, t.Size())
	}
	if warped, err = transform2D.Warp(img, t, ipf); err != nil {
		return
	}
	return image2D.Save(tm.OutputFile, warped)
}

func init() {
	rootCmd.AddCommand(TransformCmd)
	TransformCmd.Flags().StringP("input", "i", "", "image to resample")
	TransformCmd.Flags().StringP("transformFile", "t", "", "transformation written by register")
	TransformCmd.Flags().StringP("output", "o", "", "resampled image")
	TransformCmd.Flags().String("interp", "bspline:d=3", "interpolation kernel, linear or a spline kernel like omoms:d=3")
	TransformCmd.Flags().String("bc", "mirror", "boundary condition: mirror, repeat or zero")
}
