package main

import (
	"os"

	"github.com/zoek1/web-1/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
