package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/omnibuild/internal/ctxlog"
)

// FileName is the conventional basename of the project configuration file.
const FileName = "omni.build"

// ErrUnsupportedFormat is returned by Load when a file exists but no decoder
// handles its extension.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Decoder turns the contents of one file into an Export.
type Decoder interface {
	Decode(ctx context.Context, path string, data []byte) (*Export, error)
}

// Source names the files a Loader should look for. Each file is tried with
// every extension in order; an empty extension list means the file names are
// used as-is.
type Source struct {
	Files      []string
	Extensions []string
}

// Loaded is a successfully loaded configuration file.
type Loaded struct {
	Export *Export
	Path   string
}

// Loader finds and decodes configuration files.
type Loader interface {
	// Load searches for src starting at cwd and walking up to the
	// filesystem root. It returns (nil, nil) if no file matches.
	Load(ctx context.Context, src Source, cwd string) (*Loaded, error)
}

// FileLoader is the filesystem implementation of Loader. Decoders are chosen
// by file extension.
type FileLoader struct {
	decoders map[string]Decoder
}

// NewFileLoader creates a loader that understands JSON, JSONC and YAML, plus
// any extra decoders keyed by extension (including the leading dot).
func NewFileLoader(extra map[string]Decoder) *FileLoader {
	decoders := map[string]Decoder{
		".json":  jsonDecoder{},
		".jsonc": jsonDecoder{},
		".yaml":  yamlDecoder{},
		".yml":   yamlDecoder{},
	}
	for ext, d := range extra {
		decoders[ext] = d
	}
	return &FileLoader{decoders: decoders}
}

// Extensions returns the config file extensions this loader can decode, in
// discovery order.
func (l *FileLoader) Extensions() []string {
	ordered := []string{"hcl", "json", "jsonc", "yaml", "yml"}
	var out []string
	for _, ext := range ordered {
		if _, ok := l.decoders["."+ext]; ok {
			out = append(out, ext)
		}
	}
	return out
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, src Source, cwd string) (*Loaded, error) {
	logger := ctxlog.FromContext(ctx)

	path, err := l.find(src, cwd)
	if err != nil {
		return nil, err
	}
	if path == "" {
		logger.Debug("No config file found.", "files", src.Files, "cwd", cwd)
		return nil, nil
	}

	decoder, ok := l.decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	export, err := decoder.Decode(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("Config file decoded.", "path", path)
	return &Loaded{Export: export, Path: path}, nil
}

// find returns the first existing candidate, or "" if there is none.
func (l *FileLoader) find(src Source, cwd string) (string, error) {
	for dir := cwd; ; {
		for _, file := range src.Files {
			for _, candidate := range candidates(file, src.Extensions) {
				p := candidate
				if !filepath.IsAbs(p) {
					p = filepath.Join(dir, candidate)
				}
				info, err := os.Stat(p)
				if err == nil && !info.IsDir() {
					return p, nil
				}
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return "", fmt.Errorf("error accessing path %s: %w", p, err)
				}
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func candidates(file string, extensions []string) []string {
	if len(extensions) == 0 {
		return []string{file}
	}
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext == "" {
			out = append(out, file)
			continue
		}
		out = append(out, file+"."+ext)
	}
	return out
}
