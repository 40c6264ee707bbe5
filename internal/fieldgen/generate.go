// Package fieldgen generates the per-modulus packages under field/goldilocks,
// field/babybear and field/m31 from a single template, the same way
// gnark-crypto's internal/generator uses bavard to emit one fr.Element
// implementation per elliptic curve from a shared template.
//
// This core does not need per-modulus specialized arithmetic today (see
// field.Element, which is a single big.Int-backed implementation shared
// across all three families) but keeping the generation step in the tree
// documents where an optimized, family-specific implementation (Montgomery
// form for Goldilocks, a 32-bit native path for Baby Bear/M31) would be
// slotted in. The generated packages currently only return the shared
// *field.Modulus; callers in this repository use field.Goldilocks() and the
// other field accessors directly.
//
// Run via `go generate ./internal/fieldgen/...`; not invoked by the core at
// runtime.
package fieldgen

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/consensys/bavard"
)

//go:generate go run generate_main.go

// fieldSpec describes one concrete prime family to generate a package for.
type fieldSpec struct {
	Package     string
	Name        string
	Accessor    string
	Description string
	Bits        int
}

var fieldSpecs = []fieldSpec{
	{
		Package:     "goldilocks",
		Name:        "Goldilocks",
		Accessor:    "Goldilocks",
		Description: "the 64-bit Goldilocks prime p = 2^64 - 2^32 + 1, the default field for the Plonky2/Plonky3 family of backends consuming this core's witness output",
		Bits:        64,
	},
	{
		Package:     "babybear",
		Name:        "Baby Bear",
		Accessor:    "BabyBear",
		Description: "the 31-bit Baby Bear prime p = 2^31 - 2^27 + 1, used by Plonky3/Stwo-family backends",
		Bits:        31,
	},
	{
		Package:     "m31",
		Name:        "Mersenne-31",
		Accessor:    "Mersenne31",
		Description: "the Mersenne-31 prime p = 2^31 - 1, used by Stwo/Circle-STARK-family backends",
		Bits:        31,
	},
}

// Generate regenerates field/<package>/<package>.go for every registered
// fieldSpec. bavard supplies the "Code generated... DO NOT EDIT" banner and
// gofmt pass on the rendered output, the same bookkeeping gnark-crypto's own
// generator applies to every curve's fr.Element.
func Generate(repoRoot string) error {
	tmplPath := filepath.Join(repoRoot, "internal", "fieldgen", "template.go.tmpl")
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return err
	}

	bgen := bavard.NewBatchGenerator("ace-zkvm", "2025", "fieldgen")

	for _, spec := range fieldSpecs {
		outDir := filepath.Join(repoRoot, "field", spec.Package)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		outPath := filepath.Join(outDir, spec.Package+".go")

		var rendered strings.Builder
		if err := tmpl.Execute(&rendered, spec); err != nil {
			return err
		}
		if err := bgen.GenerateFromString(spec, outPath, rendered.String()); err != nil {
			return err
		}
	}
	return nil
}
