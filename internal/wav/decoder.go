package wav

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/cache"
)

// Decoder reads WAVE files from disk. It implements asset.Decoder.
type Decoder struct {
	root string
	disk *cache.DiskCache
}

// NewDecoder resolves relative names against root. disk may be nil.
func NewDecoder(root string, disk *cache.DiskCache) *Decoder {
	if expanded, err := homedir.Expand(root); err == nil {
		root = expanded
	}
	return &Decoder{root: root, disk: disk}
}

// Root returns the directory relative names are resolved against.
func (d *Decoder) Root() string { return d.root }

// Resolve maps an asset name to a file path.
func (d *Decoder) Resolve(name string) string {
	if expanded, err := homedir.Expand(name); err == nil {
		name = expanded
	}
	name = filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(name) || d.root == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(d.root, name)
}

// Decode implements asset.Decoder.
func (d *Decoder) Decode(name string, external bool) (*asset.Decoded, error) {
	path := d.Resolve(name)
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var key string
	if d.disk != nil {
		key = cacheKey(path, st.Size(), st.ModTime().UnixNano(), external)
		if blob, ok := d.disk.Get(key); ok {
			var out asset.Decoded
			if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&out); err == nil {
				logger.Debug("decoded sound from cache", "path", path)
				return &out, nil
			}
			_ = d.disk.Delete(key)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out, _, err := Parse(name, data, external)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if d.disk != nil {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(out); err == nil {
			if err := d.disk.Put(key, buf.Bytes()); err != nil {
				logger.Debug("could not cache decoded sound", "path", path, "err", err)
			}
		}
	}
	return out, nil
}

// Inspect parses a file and also returns its header info. The disk cache is
// bypassed.
func (d *Decoder) Inspect(name string, external bool) (*asset.Decoded, Info, error) {
	data, err := os.ReadFile(d.Resolve(name))
	if err != nil {
		return nil, Info{}, err
	}
	return Parse(name, data, external)
}

func cacheKey(path string, size, mtime int64, external bool) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%t", path, size, mtime, external)))
	return hex.EncodeToString(h[:])
}
