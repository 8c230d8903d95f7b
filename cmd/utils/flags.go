// Package flags provides common command-line flag and environment parsing
// utilities, ensuring consistent option handling across all commands.
package flags

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
)

// ParseFlags parses the given flag set with the provided arguments.
// It returns the remaining non-flag arguments and any error.
func ParseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			// Help was requested, exit gracefully
			fmt.Fprintln(os.Stderr)
			fs.PrintDefaults()
			os.Exit(0)
		}
		return nil, err
	}
	return fs.Args(), nil
}

// Visited returns the names of the flags that were set on the command line.
func Visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// EnvInt overrides *dst with the integer in the environment variable key,
// if it is set.
func EnvInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

// EnvString overrides *dst with the environment variable key, if it is set.
func EnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
