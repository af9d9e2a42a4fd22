package data

import (
	"fmt"
	"os"

	"cogentcore.org/core/math32"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/scene/internal/payload"
	"github.com/l1jgo/scene/internal/render"
)

// ManifestItem is one initial scene item.
type ManifestItem struct {
	Tag   string        `yaml:"tag"`
	Flags []string      `yaml:"flags"` // render.ItemKey flag names, e.g. shape, small, view_space
	Bound manifestBound `yaml:"bound"`
}

type manifestBound struct {
	Min [3]float32 `yaml:"min"`
	Max [3]float32 `yaml:"max"`
}

type manifestFile struct {
	Items []ManifestItem `yaml:"items"`
}

// Manifest is the content loaded into the scene at startup.
type Manifest struct {
	items []ManifestItem
	keys  []render.ItemKey
}

// Count returns the number of manifest items.
func (m *Manifest) Count() int {
	return len(m.items)
}

// LoadManifest loads a scene manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw)
}

// ParseManifest decodes a YAML manifest and resolves every item's key.
func ParseManifest(raw []byte) (*Manifest, error) {
	var f manifestFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m := &Manifest{
		items: f.Items,
		keys:  make([]render.ItemKey, len(f.Items)),
	}
	for i, it := range f.Items {
		for _, name := range it.Flags {
			flag, ok := render.ParseKeyFlag(name)
			if !ok {
				return nil, fmt.Errorf("manifest item %d (%s): unknown flag %q", i, it.Tag, name)
			}
			m.keys[i] |= flag
		}
		if m.keys[i].IsNone() {
			return nil, fmt.Errorf("manifest item %d (%s): no flags", i, it.Tag)
		}
	}
	return m, nil
}

// Build allocates an ID per item and returns the transaction resetting them
// all, plus the IDs in manifest order.
func (m *Manifest) Build(allocate func() render.ItemID) (*render.Transaction, []render.ItemID) {
	tx := &render.Transaction{}
	ids := make([]render.ItemID, len(m.items))
	for i, it := range m.items {
		b := it.Bound
		bound := math32.B3(b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
		ids[i] = allocate()
		tx.ResetItem(ids[i], payload.NewShape(it.Tag, m.keys[i], bound))
	}
	return tx, ids
}
