package stripemirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Snapshot is the on-disk form of a Mapper.
type Snapshot struct {
	Timestamp string                     `json:"timestamp"`
	Mappings  map[Kind]map[string]string `json:"mappings"`
	Stats     map[Kind]Counters          `json:"stats"`
	Summary   Counters                   `json:"summary"`
}

// Mapper holds the production-id → test-id correspondence table for every
// kind, plus per-kind outcome counters.
type Mapper struct {
	mu       sync.Mutex
	dir      string
	mappings map[Kind]map[string]string
	stats    map[Kind]*Counters
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewMapper creates an empty mapper that saves snapshots under dir.
// A nil log discards log output.
func NewMapper(dir string, log logrus.FieldLogger) *Mapper {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	m := &Mapper{
		dir: dir,
		now: time.Now,
		log: log,
	}
	m.reset()
	return m
}

func (m *Mapper) reset() {
	m.mappings = make(map[Kind]map[string]string)
	m.stats = make(map[Kind]*Counters)
	for _, k := range AllKinds() {
		m.mappings[k] = make(map[string]string)
		m.stats[k] = &Counters{}
	}
}

// AddMapping records that prodID corresponds to testID, replacing any
// previous mapping for prodID.
func (m *Mapper) AddMapping(kind Kind, prodID, testID string) error {
	if !kind.Valid() {
		return fmt.Errorf("add mapping %q: %w", kind, ErrUnknownResourceKind)
	}

	m.mu.Lock()
	m.mappings[kind][prodID] = testID
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"kind": kind, "prod_id": prodID, "test_id": testID}).Debug("mapping added")
	return nil
}

// TestID returns the test id mapped to prodID.
func (m *Mapper) TestID(kind Kind, prodID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.mappings[kind][prodID]
	return id, ok
}

// ProdID returns the production id mapped to testID (reverse lookup).
// If several production ids map to testID, any one of them is returned.
func (m *Mapper) ProdID(kind Kind, testID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for prodID, tid := range m.mappings[kind] {
		if tid == testID {
			return prodID, true
		}
	}
	return "", false
}

// IncrementStat bumps one counter. Unknown kinds or stats are ignored.
func (m *Mapper) IncrementStat(kind Kind, stat Stat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.stats[kind]
	if !ok {
		return
	}
	switch stat {
	case StatCreated:
		c.Created++
	case StatUpdated:
		c.Updated++
	case StatErrors:
		c.Errors++
	}
}

// ResetStats zeroes every counter and keeps the mappings.
// Used when a snapshot is loaded only to resolve references.
func (m *Mapper) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.stats {
		*c = Counters{}
	}
}

// KindStats returns the counters of one kind.
func (m *Mapper) KindStats(kind Kind) Counters {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.stats[kind]; ok {
		return *c
	}
	return Counters{}
}

// Stats returns a copy of the per-kind counters.
func (m *Mapper) Stats() map[Kind]Counters {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[Kind]Counters, len(m.stats))
	for k, c := range m.stats {
		out[k] = *c
	}
	return out
}

// Summary returns the counters summed across all kinds.
func (m *Mapper) Summary() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.summaryLocked()
}

func (m *Mapper) summaryLocked() Counters {
	var total Counters
	for _, c := range m.stats {
		total = total.Add(*c)
	}
	return total
}

// Mappings returns a deep copy of the correspondence table.
func (m *Mapper) Mappings() map[Kind]map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mappingsLocked()
}

func (m *Mapper) mappingsLocked() map[Kind]map[string]string {
	out := make(map[Kind]map[string]string, len(m.mappings))
	for k, ids := range m.mappings {
		cp := make(map[string]string, len(ids))
		for p, t := range ids {
			cp[p] = t
		}
		out[k] = cp
	}
	return out
}

// Len returns the number of mapping entries across all kinds.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ids := range m.mappings {
		n += len(ids)
	}
	return n
}

// Save writes a new snapshot file named after the current time and returns
// its path. An existing snapshot is never overwritten: a numeric suffix is
// appended when the name is taken.
func (m *Mapper) Save() (string, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("mapper: create directory: %w", err)
	}

	m.mu.Lock()
	now := m.now()
	snap := Snapshot{
		Timestamp: now.Format(time.RFC3339),
		Mappings:  m.mappingsLocked(),
		Stats:     make(map[Kind]Counters, len(m.stats)),
		Summary:   m.summaryLocked(),
	}
	for k, c := range m.stats {
		snap.Stats[k] = *c
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("mapper: encode snapshot: %w", err)
	}

	base := "mapping_" + now.Format("20060102_150405")
	for attempt := 0; attempt < 100; attempt++ {
		name := base + ".json"
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d.json", base, attempt)
		}
		path := filepath.Join(m.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("mapper: create snapshot: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("mapper: write snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("mapper: close snapshot: %w", err)
		}

		m.log.WithField("path", path).Info("mappings saved")
		return path, nil
	}

	return "", fmt.Errorf("mapper: no free snapshot name for %s", base)
}

// Load replaces the table and counters with the content of a snapshot.
// Kinds missing from the snapshot start empty.
func (m *Mapper) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, ErrSnapshotNotFound)
	}
	if err != nil {
		return fmt.Errorf("mapper: read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("mapper: decode snapshot: %w", err)
	}

	m.mu.Lock()
	m.reset()
	for k, ids := range snap.Mappings {
		if !k.Valid() {
			continue
		}
		for p, t := range ids {
			m.mappings[k][p] = t
		}
	}
	for k, c := range snap.Stats {
		if !k.Valid() {
			continue
		}
		cp := c
		m.stats[k] = &cp
	}
	m.mu.Unlock()

	m.log.WithField("path", path).Info("mappings loaded")
	return nil
}
