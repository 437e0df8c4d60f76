// Package config provides the configuration loader for bale.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
)

const supportedConfigVersion = "1"

// defaultExtensions are tried in order for extensionless specifiers when the
// configuration names none.
var defaultExtensions = []string{".js", ".mjs", ".css", ".md", ".html"}

// unknownFieldRegex extracts the offending key from yaml.v3's strict-mode
// decode error.
var unknownFieldRegex = regexp.MustCompile(`field (\S+) not found in type`)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads bale.yaml from cwd or the nearest ancestor directory and returns
// the resolved configuration. The mode is carried verbatim from the file,
// possibly empty; callers pin the effective mode with Finalize.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	root, err := l.DiscoverRoot(cwd)
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(root, domain.ConfigFileName)

	var balefile Balefile
	if err := decodeStrict(configPath, &balefile); err != nil {
		return nil, err
	}

	return l.resolve(root, configPath, &balefile)
}

// DiscoverRoot walks up from cwd to the nearest directory containing
// bale.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	currentDir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrConfigNotFound.Error())
	}

	for {
		configPath := filepath.Join(currentDir, domain.ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached the filesystem root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

// Finalize pins the effective mode and layers dotenv values underneath the
// file's define map. Precedence: bale.yaml define > .env.<mode> > .env.
func (l *Loader) Finalize(cfg *domain.Config, mode domain.Mode) error {
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return zerr.With(err, "mode", string(mode))
	}
	cfg.Mode = mode

	define := make(map[string]string)
	for _, name := range []string{".env", ".env." + string(mode)} {
		values, err := readEnvFile(filepath.Join(cfg.Root, name))
		if err != nil {
			return err
		}
		for k, v := range values {
			define[k] = v
		}
	}
	for k, v := range cfg.Define {
		define[k] = v
	}
	cfg.Define = define

	return nil
}

func (l *Loader) resolve(root, configPath string, balefile *Balefile) (*domain.Config, error) {
	if balefile.Version != "" && balefile.Version != supportedConfigVersion {
		err := zerr.With(domain.ErrUnsupportedConfigVersion, "version", balefile.Version)
		return nil, zerr.With(err, "config", configPath)
	}

	entries, err := l.canonicalizeEntries(balefile.Entries)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, zerr.With(domain.ErrNoEntriesSpecified, "config", configPath)
	}

	var mode domain.Mode
	if balefile.Mode != "" {
		mode, err = domain.ParseMode(balefile.Mode)
		if err != nil {
			return nil, zerr.With(err, "mode", balefile.Mode)
		}
	}

	shell := balefile.Shell
	if shell != "" {
		shell, err = canonicalizePath(shell)
		if err != nil {
			return nil, zerr.With(err, "shell", balefile.Shell)
		}
	}

	outDir := balefile.OutDir
	if outDir == "" {
		outDir = domain.DefaultOutDirName
	}

	extensions := balefile.Resolve.Extensions
	if len(extensions) == 0 {
		extensions = slices.Clone(defaultExtensions)
	}

	host := balefile.Server.Host
	if host == "" {
		host = domain.DefaultHost
	}
	port := balefile.Server.Port
	if port == 0 {
		port = domain.DefaultPort
	}

	maxEntries := balefile.Cache.MaxEntries
	if maxEntries == 0 {
		maxEntries = domain.DefaultCacheMaxEntries
	}
	maxBytes := balefile.Cache.MaxBytes
	if maxBytes == 0 {
		maxBytes = domain.DefaultCacheMaxBytes
	}

	debounce := domain.DefaultDebounce
	if balefile.Watch.DebounceMs > 0 {
		debounce = time.Duration(balefile.Watch.DebounceMs) * time.Millisecond
	} else if balefile.Watch.DebounceMs < 0 {
		l.Logger.Warn(fmt.Sprintf("watch.debounceMs %d is negative, using default", balefile.Watch.DebounceMs))
	}

	threshold := balefile.SharedThreshold
	if threshold <= 0 {
		threshold = domain.DefaultSharedThreshold
	}

	return &domain.Config{
		Root:    root,
		Entries: entries,
		OutDir:  outDir,
		Mode:    mode,
		Shell:   shell,
		Resolve: domain.ResolveRules{
			Extensions: extensions,
			Alias:      balefile.Resolve.Alias,
		},
		Define:          balefile.Define,
		Transforms:      balefile.Transform,
		Server:          domain.ServerConfig{Host: host, Port: port},
		Cache:           domain.CacheConfig{MaxEntries: maxEntries, MaxBytes: maxBytes},
		Watch:           domain.WatchConfig{Debounce: debounce},
		SharedThreshold: threshold,
	}, nil
}

// canonicalizeEntries normalizes entry paths to slash-separated root-relative
// form, dropping duplicates while keeping first occurrence order. Entry order
// is load-bearing: it decides chunk naming and tie-breaks in the build.
func (l *Loader) canonicalizeEntries(raw []string) ([]string, error) {
	entries := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, e := range raw {
		canonical, err := canonicalizePath(e)
		if err != nil {
			return nil, zerr.With(err, "entry", e)
		}
		if seen[canonical] {
			l.Logger.Warn(fmt.Sprintf("duplicate entry %q ignored", e))
			continue
		}
		seen[canonical] = true
		entries = append(entries, canonical)
	}

	return entries, nil
}

// canonicalizePath normalizes a configured path to slash-separated form
// relative to the project root.
func canonicalizePath(p string) (string, error) {
	clean := path.Clean(filepath.ToSlash(p))
	if path.IsAbs(clean) {
		return "", zerr.With(domain.ErrEntryOutsideRoot, "path", p)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", zerr.With(domain.ErrEntryOutsideRoot, "path", p)
	}
	return clean, nil
}

// decodeStrict reads a YAML file and decodes it with unknown keys rejected.
func decodeStrict(configPath string, target *Balefile) error {
	// #nosec G304 -- configPath is resolved from the discovered project root
	data, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		if m := unknownFieldRegex.FindStringSubmatch(err.Error()); m != nil {
			keyErr := zerr.With(domain.ErrUnknownConfigKey, "key", m[1])
			return zerr.With(keyErr, "config", configPath)
		}
		return zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}

	return nil
}

// readEnvFile parses one dotenv file. A missing file is not an error.
func readEnvFile(envPath string) (map[string]string, error) {
	if _, err := os.Stat(envPath); err != nil {
		return nil, nil
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		err = zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
		return nil, zerr.With(err, "env_file", envPath)
	}

	return values, nil
}
