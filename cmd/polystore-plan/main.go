// polystore-plan optimizes and executes plan files against CSV fragments.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
)

// globalFlags are shared by all commands.
type globalFlags struct {
	configFile    string
	logLevel      dslog.Level
	maxIterations int
	disabledRules []string
}

func main() {
	var flags globalFlags

	app := kingpin.New("polystore-plan", "Optimize and execute polystore plan files.")
	app.Flag("config.file", "YAML file to load the engine configuration from.").StringVar(&flags.configFile)
	app.Flag("log.level", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]").Default("info").SetValue(&flags.logLevel)
	app.Flag("optimizer.max-iterations", "Overrides the maximum number of rule applications per plan.").IntVar(&flags.maxIterations)
	app.Flag("optimizer.disable-rule", "Name of an optimizer rule that is never applied. May be repeated.").StringsVar(&flags.disabledRules)

	addOptimizeCommand(app, &flags)
	addRunCommand(app, &flags)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func newLogger(lvl dslog.Level) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, lvl.Option)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}
