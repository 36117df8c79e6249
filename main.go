package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case runMode:
		checkf(runMain(cli), "failed to run program")
	case debugMode:
		checkf(debugMain(cli), "debugger error")
	case infoMode:
		checkf(infoMain(os.Stdout, cli.Info.Program), "failed to read program")
	case versionMode:
		printVersion()
	}
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("debug80", version)
}
