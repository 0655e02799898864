package sound

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pion/logging"
)

// Library maps sound names to decoded buffers at a fixed sample rate.
// It is safe for concurrent use.
type Library struct {
	sampleRate int
	log        logging.LeveledLogger

	mu     sync.RWMutex
	sounds map[string]*Buffer
}

// NewLibrary creates an empty library whose buffers are kept at sampleRate.
func NewLibrary(sampleRate int, lf logging.LoggerFactory) *Library {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Library{
		sampleRate: sampleRate,
		log:        lf.NewLogger("sound"),
		sounds:     make(map[string]*Buffer),
	}
}

// SampleRate returns the library's target rate.
func (l *Library) SampleRate() int {
	return l.sampleRate
}

// Add registers b under name, resampling it when needed.
func (l *Library) Add(name string, b *Buffer) error {
	if b == nil {
		return fmt.Errorf("nil buffer for sound %q", name)
	}
	if b.SampleRate != l.sampleRate {
		r, err := Resample(b, l.sampleRate)
		if err != nil {
			return fmt.Errorf("sound %q: %w", name, err)
		}
		b = r
	}
	l.mu.Lock()
	l.sounds[normalizeName(name)] = b
	l.mu.Unlock()
	return nil
}

// Get returns the buffer registered under name.
func (l *Library) Get(name string) (*Buffer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.sounds[normalizeName(name)]
	return b, ok
}

// Names returns all registered names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.sounds))
	for k := range l.sounds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LoadDir decodes every .wav file in dir. The sound name is the upper-cased
// file name without extension. Files that fail to decode are logged and
// skipped; the number of loaded sounds is returned.
func (l *Library) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		b, err := LoadWAV(path, l.sampleRate)
		if err != nil {
			l.log.Warnf("skipping %s: %v", path, err)
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := l.Add(name, b); err != nil {
			l.log.Warnf("skipping %s: %v", path, err)
			continue
		}
		loaded++
	}
	l.log.Debugf("loaded %d sounds from %s", loaded, dir)
	return loaded, nil
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
