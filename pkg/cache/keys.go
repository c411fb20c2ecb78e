package cache

import "strings"

// Keyer builds cache keys. Implementations must be deterministic.
type Keyer interface {
	// HTTPKey keys a backend response within a namespace such as "main-chain:".
	HTTPKey(namespace, key string) string

	// ImageKey keys the raw bytes of a portrait URL.
	ImageKey(url string) string

	// SnapshotKey keys settled positions for a backbone hash.
	SnapshotKey(backboneHash string) string

	// ArtifactKey keys a rendered frame of a view.
	ArtifactKey(viewHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the render parameters that distinguish artifacts of
// the same view.
type ArtifactKeyOpts struct {
	Format string  `json:"format"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Zoom   float64 `json:"zoom"`
	Trace  string  `json:"trace,omitempty"`
	Era    int     `json:"era,omitempty"`
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// ImageKey hashes the URL so arbitrary query strings stay key-safe.
func (DefaultKeyer) ImageKey(url string) string {
	return hashKey("image", strings.TrimSpace(url))
}

// SnapshotKey returns "snapshot:<hash>".
func (DefaultKeyer) SnapshotKey(backboneHash string) string {
	return "snapshot:" + backboneHash
}

// ArtifactKey hashes the view hash with the render options.
func (DefaultKeyer) ArtifactKey(viewHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", viewHash, opts)
}

var _ Keyer = DefaultKeyer{}
