// Package object defines the data model of the virtual content tree:
// items (leaf nodes backed by one file each) and containers (directory or
// virtual grouping nodes), their resources, metadata, and the
// clone-modify-compare helpers used for equality-gated updates.
package object
