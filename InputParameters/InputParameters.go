package InputParameters

import (
	"fmt"
	"io"
	"os"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML registration file
type RegistrationParameters struct {
	Title               string   `yaml:"Title"`
	Transform           string   `yaml:"Transform"`           // e.g. "spline:rate=8,kernel=[bspline:d=3]"
	Costs               []string `yaml:"Costs"`               // e.g. "image:kernel=ssd,weight=1"
	Minimizer           string   `yaml:"Minimizer"`           // e.g. "gonum:opt=lbfgs,iter=200"
	RefinementMinimizer string   `yaml:"RefinementMinimizer"` // optional second pass at every level
	Levels              int      `yaml:"Levels"`              // zero derives the levels from StartSize
	StartSize           int      `yaml:"StartSize"`
	MinSize             int      `yaml:"MinSize"`
	FinalPass           bool     `yaml:"FinalPass"`
	Normalize           *bool    `yaml:"Normalize"` // unset means true
	DivCurl             string   `yaml:"DivCurl"`   // optional regularizer, "divcurl:weight=1,divergence=1,curl=1"
}

func NewRegistrationParameters() *RegistrationParameters {
	return &RegistrationParameters{
		Transform: "spline:rate=8,kernel=[bspline:d=3]",
		Costs:     []string{"image:kernel=ssd,weight=1"},
		Minimizer: "gonum:opt=lbfgs,iter=200,eps=1e-6",
		StartSize: 16,
		MinSize:   4,
	}
}

func (rp *RegistrationParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, rp)
}

func (rp *RegistrationParameters) ReadFile(path string) (err error) {
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	return rp.Parse(data)
}

func (rp *RegistrationParameters) NormalizeImages() bool {
	return rp.Normalize == nil || *rp.Normalize
}

func (rp *RegistrationParameters) Print() { rp.Fprint(os.Stdout) }

func (rp *RegistrationParameters) Fprint(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", rp.Title)
	fmt.Fprintf(w, "[%s]\t= Transform\n", rp.Transform)
	for i, c := range rp.Costs {
		fmt.Fprintf(w, "Costs[%d] = %s\n", i, c)
	}
	fmt.Fprintf(w, "[%s]\t= Minimizer\n", rp.Minimizer)
	if len(rp.RefinementMinimizer) != 0 {
		fmt.Fprintf(w, "[%s]\t= Refinement Minimizer\n", rp.RefinementMinimizer)
	}
	if len(rp.DivCurl) != 0 {
		fmt.Fprintf(w, "[%s]\t= DivCurl\n", rp.DivCurl)
	}
	fmt.Fprintf(w, "[%d]\t\t\t\t= Levels\n", rp.Levels)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Start Size\n", rp.StartSize)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Min Size\n", rp.MinSize)
	fmt.Fprintf(w, "[%v]\t\t\t= Final Pass\n", rp.FinalPass)
	fmt.Fprintf(w, "[%v]\t\t\t= Normalize\n", rp.NormalizeImages())
}

// ExampleFile is printed by the command line tools when no parameter file is given
const ExampleFile = `
########################################
Title: "Test Case"
Transform: spline:rate=8,kernel=[bspline:d=3]
Costs:
  - image:kernel=ssd,weight=1,interp=[bspline:d=3]
Minimizer: gonum:opt=lbfgs,iter=200,eps=1e-6
DivCurl: divcurl:weight=1,divergence=1,curl=1
StartSize: 16
MinSize: 4
FinalPass: false
########################################
`
