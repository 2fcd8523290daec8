// Package configstore defines the contract shared by every configuration backend.
package configstore

type ConfigStore interface {
	Load(out any) error
	Save(data any) error
	Close() error
}
