package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/gitcha"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/trainsim/soundsource/internal/cache"
	"github.com/trainsim/soundsource/internal/sound"
	"github.com/trainsim/soundsource/internal/wav"
)

const maxSuggestions = 3

var soundExtensions = []string{"*.wav", "*.WAV"}

// soundFile is a sound found under the asset root.
type soundFile struct {
	Name    string // relative to the asset root, slash separated
	Path    string
	Size    int64
	ModTime time.Time
}

// newDecoder creates the WAVE decoder for cfg, backed by the decode cache
// when it is enabled. The returned func closes the cache.
func newDecoder(cfg sound.Config) (*wav.Decoder, func()) {
	var disk *cache.DiskCache
	if cfg.DecodeCache.Enabled {
		dir := cfg.DecodeCache.Dir
		if expanded, err := homedir.Expand(dir); err == nil {
			dir = expanded
		}
		dc, err := cache.Open(cache.Config{
			Dir:              dir,
			Capacity:         cfg.DecodeCache.MaxSize,
			CompressionLevel: cfg.DecodeCache.CompressionLevel,
		})
		if err != nil {
			log.Warn("decode cache disabled", "dir", dir, "err", err)
		} else {
			disk = dc
		}
	}

	dec := wav.NewDecoder(cfg.AssetRoot, disk)
	return dec, func() {
		if disk == nil {
			return
		}
		if err := disk.Close(); err != nil {
			log.Warn("unable to save decode cache index", "err", err)
		}
	}
}

// findSounds lists the sounds under root. Unless all is set, files ignored
// by git are skipped.
func findSounds(root string, all bool) ([]soundFile, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s: %w", root, err)
	}

	var ch chan gitcha.SearchResult
	if all {
		ch, err = gitcha.FindAllFilesExcept(abs, soundExtensions, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(abs, soundExtensions, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", root, err)
	}

	var files []soundFile
	for res := range ch {
		rel, err := filepath.Rel(abs, res.Path)
		if err != nil {
			rel = res.Path
		}
		files = append(files, soundFile{
			Name:    filepath.ToSlash(rel),
			Path:    res.Path,
			Size:    res.Info.Size(),
			ModTime: res.Info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// suggestSounds returns the names closest to name, best first.
func suggestSounds(name string, files []soundFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	pattern := strings.TrimSuffix(filepath.Base(filepath.ToSlash(name)), filepath.Ext(name))
	matches := fuzzy.Find(pattern, names)
	if len(matches) == 0 && pattern != name {
		matches = fuzzy.Find(name, names)
	}

	var out []string
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// checkSounds fails on the first sound that does not exist, suggesting
// similar names from the asset root.
func checkSounds(dec *wav.Decoder, names []string) error {
	for _, name := range names {
		_, err := os.Stat(dec.Resolve(name))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unable to open sound: %w", err)
		}

		msg := fmt.Sprintf("sound %q not found in %s", name, dec.Root())
		files, ferr := findSounds(dec.Root(), true)
		if ferr != nil {
			log.Debug("unable to list sounds for suggestions", "err", ferr)
		}
		if s := suggestSounds(name, files); len(s) > 0 {
			msg += "\n\nDid you mean:\n  " + strings.Join(s, "\n  ")
		}
		return errors.New(msg)
	}
	return nil
}

// completeSounds completes sound names relative to the asset root.
func completeSounds(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	cfg, err := sound.LoadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	files, err := findSounds(cfg.AssetRoot, false)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
