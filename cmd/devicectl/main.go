package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bizops/backend/internal/tools/devicectl"
)

func main() {
	if err := devicectl.NewRootCommand().Execute(); err != nil {
		if errors.Is(err, devicectl.ErrNotAllowed) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
