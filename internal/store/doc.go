// Package store persists the virtual content tree and autoscan
// configuration in SQLite. It owns the object table invariants: unique
// locations for physical objects, one container title per parent, the
// protected root containers, and reference cleanup plus empty-container
// pruning on removal.
package store
