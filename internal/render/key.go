package render

import "strings"

// ItemKey is the classification bit set of an item. It decides whether the
// item lives in the spatial index or in the non-spatial set, and which cell
// size the spatial index uses for it.
type ItemKey uint32

const (
	KeyTypeShape ItemKey = 1 << iota
	KeyTypeLight
	KeyTypeMeta
	KeyTranslucent
	KeyViewSpace // rendered in view space, never spatially partitioned
	KeyDynamic
	KeyDeformed
	KeyInvisible
	KeyShadowCaster
	KeyLayered
	KeySmall
)

var keyNames = []struct {
	flag ItemKey
	name string
}{
	{KeyTypeShape, "shape"},
	{KeyTypeLight, "light"},
	{KeyTypeMeta, "meta"},
	{KeyTranslucent, "translucent"},
	{KeyViewSpace, "view_space"},
	{KeyDynamic, "dynamic"},
	{KeyDeformed, "deformed"},
	{KeyInvisible, "invisible"},
	{KeyShadowCaster, "shadow_caster"},
	{KeyLayered, "layered"},
	{KeySmall, "small"},
}

// IsNone reports whether the key carries no flags at all (empty item).
func (k ItemKey) IsNone() bool { return k == 0 }

// IsSpatial reports whether the item participates in spatial partitioning.
func (k ItemKey) IsSpatial() bool { return k != 0 && k&KeyViewSpace == 0 }

// IsSmall reports whether the spatial index should bin the item in the fine level.
func (k ItemKey) IsSmall() bool { return k&KeySmall != 0 }

func (k ItemKey) Has(flag ItemKey) bool { return k&flag == flag }

func (k ItemKey) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	for _, n := range keyNames {
		if k&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseKeyFlag maps a flag name (as printed by String) to its bit.
func ParseKeyFlag(name string) (ItemKey, bool) {
	for _, n := range keyNames {
		if n.name == name {
			return n.flag, true
		}
	}
	return 0, false
}

// KeyBuilder composes an ItemKey.
type KeyBuilder struct {
	key ItemKey
}

func NewKeyBuilder() *KeyBuilder { return &KeyBuilder{} }

func (b *KeyBuilder) WithTypeShape() *KeyBuilder   { b.key |= KeyTypeShape; return b }
func (b *KeyBuilder) WithTypeLight() *KeyBuilder   { b.key |= KeyTypeLight; return b }
func (b *KeyBuilder) WithTypeMeta() *KeyBuilder    { b.key |= KeyTypeMeta; return b }
func (b *KeyBuilder) WithTransparent() *KeyBuilder { b.key |= KeyTranslucent; return b }
func (b *KeyBuilder) WithViewSpace() *KeyBuilder   { b.key |= KeyViewSpace; return b }
func (b *KeyBuilder) WithDynamic() *KeyBuilder     { b.key |= KeyDynamic; return b }
func (b *KeyBuilder) WithDeformed() *KeyBuilder    { b.key |= KeyDeformed; return b }
func (b *KeyBuilder) WithInvisible() *KeyBuilder   { b.key |= KeyInvisible; return b }
func (b *KeyBuilder) WithShadowCaster() *KeyBuilder {
	b.key |= KeyShadowCaster
	return b
}
func (b *KeyBuilder) WithLayered() *KeyBuilder { b.key |= KeyLayered; return b }
func (b *KeyBuilder) WithSmaller() *KeyBuilder { b.key |= KeySmall; return b }

func (b *KeyBuilder) Build() ItemKey { return b.key }
