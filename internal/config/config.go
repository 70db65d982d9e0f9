// Package config parses the service's command-line configuration.
//
// The cache root is a fixed relative directory ("cache") under the working
// directory; there are no environment-variable overrides, since the two
// command-line flags are the whole of the service's tunable surface.
package config

import (
	flag "github.com/spf13/pflag"
)

// DefaultPort is the port the server listens on when --port is omitted.
const DefaultPort = 8801

// CacheDir is the fixed, non-overridable cache root.
const CacheDir = "cache"

// Config holds the service's two command-line flags.
type Config struct {
	Port  int
	Debug bool
}

// Parse parses args (typically os.Args[1:]) into a Config. Unknown flags
// produce an error; there is no further validation since both flags are
// unconstrained.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("filecache", flag.ContinueOnError)

	port := fs.Int("port", DefaultPort, "server port")
	debug := fs.Bool("debug", false, "enable debug mode (selects the net/http transport engine instead of fiber)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return Config{Port: *port, Debug: *debug}, nil
}
