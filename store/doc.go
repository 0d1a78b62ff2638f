// Package store holds what the configuration store backends share. The
// backends live in the memory and sqlite subpackages.
package store
