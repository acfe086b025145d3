package keys

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/magiconair/properties"
)

var (
	keys = make(map[string][]byte)
	mu   sync.RWMutex
)

// Load reads keys from a properties-style file.
// Format expected: key_name = HEXVALUE
func Load(path string) error {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return err
	}

	for _, name := range p.Keys() {
		valHex, _ := p.Get(name)
		val, err := hex.DecodeString(valHex)
		if err != nil {
			continue
		}
		mu.Lock()
		keys[name] = val
		mu.Unlock()
	}
	return nil
}

// Set stores a key under the given name, replacing any loaded value.
func Set(name string, key []byte) {
	dup := make([]byte, len(key))
	copy(dup, key)
	mu.Lock()
	keys[name] = dup
	mu.Unlock()
}

// Get retrieves a key by name. Returns nil if not found.
func Get(name string) []byte {
	mu.RLock()
	defer mu.RUnlock()
	if k, ok := keys[name]; ok {
		// Return a copy to prevent modification
		dest := make([]byte, len(k))
		copy(dest, k)
		return dest
	}
	return nil
}

// LoadDefault tries to load keys from standard locations.
func LoadDefault() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	paths := []string{
		"wii.keys",
		"keys.txt",
		filepath.Join(home, ".wii", "wii.keys"),
		filepath.Join(home, ".wii", "keys.txt"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return fmt.Errorf("no keys file found")
}
