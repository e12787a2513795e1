package main

import (
	"fmt"
	"os"

	"github.com/arthur-debert/arbor/cmd/arbor"
	"github.com/arthur-debert/arbor/pkg/style"
)

func main() {
	rootCmd := arbor.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		renderer := style.NewRenderer(style.DetectFormat(os.Stderr))
		fmt.Fprintln(os.Stderr, renderer.RenderError(err))
		os.Exit(1)
	}
}
