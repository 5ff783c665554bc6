// Command pperf analyzes "perf report --stdio" text output: ranking
// hot functions, averaging them across several reports, and tracing
// caller/callee relationships between a chosen set of target functions.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/jerrinot/pperf/internal/pperferr"
)

func main() {
	// glog registers its flags (-v, -logtostderr, ...) on the standard
	// flag package; fold them into the pflag set cobra parses so both
	// coexist on one command line.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	defer glog.Flush()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		glog.Errorf("pperf: %v", err)
		os.Exit(pperferr.ExitCode(err))
	}
}
