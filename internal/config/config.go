// Package config loads the command line settings from bbservices.yaml,
// BBSERVICES_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bbservices/bbservices/internal/report"
)

const (
	// EnvConfig names the config file to load, it wins over --config.
	EnvConfig = "BBSERVICESCONFIG"
	envPrefix = "BBSERVICES"
	fileName  = "bbservices"
)

var ErrInvalid = errors.New("invalid settings")

type Settings struct {
	Parallelism int    `mapstructure:"parallelism" yaml:"parallelism"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose"`
	Format      string `mapstructure:"format" yaml:"format"`
	Report      struct {
		Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
		URL string `mapstructure:"url" yaml:"url,omitempty"`
	} `mapstructure:"report" yaml:"report"`
	Defaults struct {
		Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"defaults" yaml:"defaults"`
}

// Loader reads Settings with its own viper instance.
type Loader struct {
	v    *viper.Viper
	dirs []string
}

// NewLoader searches bbservices.yaml in dirs when no file is named
// explicitly.
func NewLoader(dirs ...string) *Loader {
	v := viper.New()
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("parallelism", 4)
	v.SetDefault("verbose", false)
	v.SetDefault("format", report.FormatJSON)
	v.SetDefault("report.dir", "")
	v.SetDefault("report.url", "")
	v.SetDefault("defaults.timeout", time.Duration(0))
	return &Loader{v: v, dirs: dirs}
}

// UserConfigDir returns the directory bbservices.yaml is searched in first.
func UserConfigDir() (string, error) {
	d, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, fileName), nil
}

// BindFlags makes the flags of the same name win over the file and the
// environment once they are set.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for _, key := range []string{"parallelism", "verbose", "format"} {
		f := flags.Lookup(key)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the settings. path is the value of --config, $BBSERVICESCONFIG
// wins over it. Without either, a missing file is not an error. It returns
// the config file used, if any.
func (l *Loader) Load(path string) (Settings, string, error) {
	if envConfig, ok := os.LookupEnv(EnvConfig); ok {
		path = envConfig
	}
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		for _, d := range l.dirs {
			l.v.AddConfigPath(d)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, "", fmt.Errorf("reading config file: %w", err)
		}
	}

	var s Settings
	if err := l.v.Unmarshal(&s); err != nil {
		return Settings{}, "", fmt.Errorf("parsing config file %s: %w", l.v.ConfigFileUsed(), err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, "", err
	}
	return s, l.v.ConfigFileUsed(), nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("%w: parallelism %d is negative", ErrInvalid, s.Parallelism))
	}
	if s.Format != report.FormatJSON && s.Format != report.FormatYAML {
		errs = append(errs, fmt.Errorf("%w: format %q, expected json or yaml", ErrInvalid, s.Format))
	}
	if s.Defaults.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: defaults.timeout %s is negative", ErrInvalid, s.Defaults.Timeout))
	}
	return errors.Join(errs...)
}

// Publisher returns the report sinks: w when neither report.dir nor
// report.url is set, the configured ones otherwise.
func (s Settings) Publisher(w io.Writer) (report.Multi, error) {
	if s.Report.Dir == "" && s.Report.URL == "" {
		p, err := report.NewWriterPublisher(w, s.Format)
		if err != nil {
			return nil, err
		}
		return report.Multi{p}, nil
	}

	var publishers report.Multi
	if s.Report.Dir != "" {
		p, err := report.NewDirPublisher(s.Report.Dir)
		if err != nil {
			return nil, fmt.Errorf("report.dir: %w", err)
		}
		publishers = append(publishers, p)
	}
	if s.Report.URL != "" {
		p, err := report.NewHTTPPublisher(s.Report.URL, nil)
		if err != nil {
			_ = publishers.Close()
			return nil, fmt.Errorf("report.url: %w", err)
		}
		publishers = append(publishers, p)
	}
	return publishers, nil
}
