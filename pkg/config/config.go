package config

import (
	"errors"
	"fmt"

	"github.com/andrej220/formation/pkg/config/configstore"
	"github.com/andrej220/formation/pkg/config/filestore"
	"github.com/andrej220/formation/pkg/config/mongostore"
)

type StoreType int

const (
	FileStore StoreType = iota
	MongoStore
)

var (
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Config is a configuration backend.
type Config interface {
	configstore.ConfigStore
}

type FileConfig struct {
	Path string `yaml:"path" json:"path"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" json:"uri"`
	DBName   string `yaml:"dbName" json:"dbName"`
	CollName string `yaml:"collName" json:"collName"`
	ID       string `yaml:"id" json:"id"` // Document ID
}

func NewStore(storeType StoreType, cfg any) (Config, error) {
	switch storeType {
	case FileStore:
		fileCfg, ok := cfg.(*FileConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for file store, expected *FileConfig")
		}
		return filestore.New(fileCfg.Path), nil
	case MongoStore:
		mongoCfg, ok := cfg.(*MongoConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for mongo store, expected *MongoConfig")
		}
		store, err := mongostore.New(mongoCfg.URI, mongoCfg.DBName, mongoCfg.CollName, mongoCfg.ID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, ErrInvalidStoreType
	}
}

// Source locates one document: a YAML file or a MongoDB document.
// Exactly one of File and Mongo should be set.
type Source struct {
	File  string       `yaml:"file" json:"file"`
	Mongo *MongoConfig `yaml:"mongo" json:"mongo"`
}

// Open returns the store behind s.
func (s Source) Open() (Config, error) {
	switch {
	case s.Mongo != nil:
		return NewStore(MongoStore, s.Mongo)
	case s.File != "":
		return NewStore(FileStore, &FileConfig{Path: s.File})
	}
	return nil, fmt.Errorf("%w: no file or mongo source configured", ErrInvalidStoreType)
}

// LoadFrom opens s, decodes its document into out and closes the store.
func LoadFrom(s Source, out any) (err error) {
	store, err := s.Open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); err == nil {
			err = cerr
		}
	}()
	return store.Load(out)
}

// SaveTo opens s, writes in as its document and closes the store.
func SaveTo(s Source, in any) (err error) {
	store, err := s.Open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); err == nil {
			err = cerr
		}
	}()
	return store.Save(in)
}
