package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFileNames are probed in order by Discover.
var DefaultFileNames = []string{"oro.toml", "oro.yaml", "oro.yml"}

// Discover returns the first default config file present in root, or ""
// when there is none.
func Discover(fsys FileSystem, root string) string {
	for _, name := range DefaultFileNames {
		path := filepath.Join(root, name)
		if info, err := fsys.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads the config file at path on top of Default. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadFS(OSFS{}, path)
}

// LoadFS is Load on an arbitrary file system.
func LoadFS(fsys FileSystem, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(path, data, cfg)
	case ".yaml", ".yml":
		err = decodeYAML(path, data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeTOML(path string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	err := dec.Decode(cfg)
	if err == nil {
		return nil
	}

	perr := &ParseError{Path: path, Message: err.Error(), Err: err}

	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		perr.Line, perr.Column = decErr.Position()
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) && len(strictErr.Errors) > 0 {
		first := strictErr.Errors[0]
		perr.Line, perr.Column = first.Position()
		perr.Message = "unknown setting " + strings.Join(first.Key(), ".")
	}
	return perr
}

func decodeYAML(path string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(cfg)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	// yaml.v3 reports positions only inside its messages:
	// "yaml: line 3: ..." or, per field, "line 3: ...".
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}

	perr := &ParseError{Path: path, Message: msg, Err: err}
	if rest, ok := strings.CutPrefix(msg, "line "); ok {
		if n, tail, ok := strings.Cut(rest, ": "); ok {
			if line, convErr := strconv.Atoi(n); convErr == nil {
				perr.Line = line
				perr.Message = tail
			}
		}
	}
	return perr
}
