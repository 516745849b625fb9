package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"gopkg.in/yaml.v3"
)

// FileConfig configures the YAML file store.
type FileConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type tokenFile struct {
	Tokens map[string]*qbo.StoreTokenData `yaml:"tokens"`
}

// FileStore keeps all realms' tokens in one YAML document. Writes replace
// the file through a temporary sibling so readers never see a partial file.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, ErrFileConfigRequired
	}

	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// GetToken implements qbo.TokenStore.
func (s *FileStore) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	return doc.Tokens[ref.RealmID].Clone(), nil
}

// SaveToken implements qbo.TokenStore.
func (s *FileStore) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	if token == nil {
		return nil, ErrNilToken
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	doc.Tokens[ref.RealmID] = token.Clone()

	err = s.save(doc)
	if err != nil {
		return nil, err
	}

	return token.Clone(), nil
}

// DeleteToken removes the realm's entry.
func (s *FileStore) DeleteToken(ctx context.Context, ref qbo.RealmRef) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Tokens[ref.RealmID]; !ok {
		return nil
	}

	delete(doc.Tokens, ref.RealmID)

	return s.save(doc)
}

func (s *FileStore) load() (*tokenFile, error) {
	doc := &tokenFile{Tokens: make(map[string]*qbo.StoreTokenData)}

	// #nosec G304 -- the path is supplied by the application, not a request
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}

		return nil, fmt.Errorf("reading token file: %w", err)
	}

	err = yaml.Unmarshal(data, doc)
	if err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", s.path, err)
	}

	if doc.Tokens == nil {
		doc.Tokens = make(map[string]*qbo.StoreTokenData)
	}

	return doc, nil
}

func (s *FileStore) save(doc *tokenFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(s.path), constants.StoreDirPerm)
	if err != nil {
		return fmt.Errorf("creating token file directory: %w", err)
	}

	tmp := s.path + ".tmp"

	err = os.WriteFile(tmp, data, constants.StoreFilePerm)
	if err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	err = os.Rename(tmp, s.path)
	if err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replacing token file: %w", err)
	}

	return nil
}
