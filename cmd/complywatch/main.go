package main

import (
	"complywatch/internal/di"
	"complywatch/internal/structures"
	"flag"
	"fmt"
	"os"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	debug := flag.Bool("debug", false, "mirror logs to stdout")
	flag.Parse()

	flags := &structures.CliFlags{
		ConfigPath: *configPath,
		DebugMode:  *debug,
	}

	_, cleanup, err := di.InitApp(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "complywatch: %s\n", err)
		os.Exit(1)
	}
	cleanup()
}
