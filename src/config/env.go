package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"oci-volume-backup/src/errdefs"
)

// EnvPrefix is prepended to a flag's upper-cased name to form its
// environment variable, e.g. OCI_VOLUME_BACKUP_PASSWORD for --password.
const EnvPrefix = "OCI_VOLUME_BACKUP_"

// DefaultEnvFile is loaded when present and no --env-file was given.
const DefaultEnvFile = ".env"

// skipped flags never come from the environment.
var skipped = map[string]bool{"help": true, "env-file": true}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// LoadEnvFile loads variables from path into the process environment without
// overriding variables already set. With an empty path DefaultEnvFile is
// loaded if it exists. It returns the file actually loaded, if any.
func LoadEnvFile(path string) (string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: env file: %v", errdefs.ErrConfiguration, err)
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("%w: env file %s: %v", errdefs.ErrConfiguration, path, err)
	}
	return path, nil
}

// ApplyEnv fills every flag not set on the command line from its environment
// variable. lookup defaults to os.LookupEnv. It returns the names of the flags
// that were filled.
func ApplyEnv(flags *pflag.FlagSet, lookup func(string) (string, bool)) ([]string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var applied []string
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || skipped[f.Name] {
			return
		}
		val, ok := lookup(EnvName(f.Name))
		if !ok {
			return
		}
		if err := flags.Set(f.Name, val); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q: %v", errdefs.ErrConfiguration, EnvName(f.Name), val, err))
			return
		}
		applied = append(applied, f.Name)
	})
	return applied, errors.Join(errs...)
}
