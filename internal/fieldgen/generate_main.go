//go:build ignore

package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/ace-zkvm/ace/internal/fieldgen"
)

func main() {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	// go generate runs this from internal/fieldgen; Generate takes the repo root.
	if err := fieldgen.Generate(filepath.Join(wd, "..", "..")); err != nil {
		log.Fatal(err)
	}
}
