package cache

// ScopedKeyer prefixes every key of an inner Keyer, so several
// deployments can share one redis instance:
//
//	staging := NewScopedKeyer(NewDefaultKeyer(), "staging:")
//	staging.SnapshotKey(hash) // "staging:snapshot:<hash>"
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

func (k *ScopedKeyer) ImageKey(url string) string { return k.prefix + k.inner.ImageKey(url) }

func (k *ScopedKeyer) SnapshotKey(backboneHash string) string {
	return k.prefix + k.inner.SnapshotKey(backboneHash)
}

func (k *ScopedKeyer) ArtifactKey(viewHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(viewHash, opts)
}
