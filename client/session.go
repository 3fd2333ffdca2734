package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/user"
)

// StoredSession is what survives a restart: the token and the favourite proyek ids.
type StoredSession struct {
	Token      string   `json:"token"`
	Favourites []string `json:"favourites,omitempty"`
}

type TokenStore interface {
	Load() (StoredSession, error)
	Save(StoredSession) error
	Clear() error
}

// FileStore keeps the session as JSON in a file readable only by its owner.
type FileStore struct {
	Path string
}

func (fs FileStore) Load() (StoredSession, error) {
	var ss StoredSession
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ss, nil
		}
		return ss, errors.Wrap(err, "reading session file")
	}
	if err = json.Unmarshal(data, &ss); err != nil {
		return StoredSession{}, errors.Wrap(err, "decoding session file")
	}
	return ss, nil
}

func (fs FileStore) Save(ss StoredSession) error {
	data, err := json.Marshal(ss)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fs.Path), 0o700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	return errors.Wrap(os.WriteFile(fs.Path, data, 0o600), "writing session file")
}

func (fs FileStore) Clear() error {
	if err := os.Remove(fs.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}

type MemoryStore struct {
	mutex sync.Mutex
	ss    StoredSession
}

func (ms *MemoryStore) Load() (StoredSession, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ss := ms.ss
	ss.Favourites = append([]string(nil), ms.ss.Favourites...)
	return ss, nil
}

func (ms *MemoryStore) Save(ss StoredSession) error {
	ms.mutex.Lock()
	ms.ss = ss
	ms.mutex.Unlock()
	return nil
}

func (ms *MemoryStore) Clear() error {
	return ms.Save(StoredSession{})
}

// Session holds the authenticated user and their token.
// It is created once and handed to every component that talks to the API.
type Session struct {
	store      TokenStore
	mutex      sync.RWMutex
	token      string
	usr        user.User
	favourites []string
}

func NewSession(store TokenStore) *Session {
	if store == nil {
		store = new(MemoryStore)
	}
	return &Session{store: store}
}

// Hydrate restores the persisted token; the user is loaded by Client.Me.
func (s *Session) Hydrate() error {
	ss, err := s.store.Load()
	if err != nil {
		return err
	}
	s.mutex.Lock()
	s.token = ss.Token
	s.favourites = ss.Favourites
	s.mutex.Unlock()
	return nil
}

// Start persists a freshly issued token, e.g. after login or a successful claim.
func (s *Session) Start(token string, usr user.User) error {
	s.mutex.Lock()
	s.token, s.usr = token, usr
	ss := s.stored()
	s.mutex.Unlock()
	return s.store.Save(ss)
}

func (s *Session) setUser(usr user.User) {
	s.mutex.Lock()
	s.usr = usr
	s.mutex.Unlock()
}

// Teardown forgets the token, the user and the favourites.
func (s *Session) Teardown() error {
	s.mutex.Lock()
	s.token, s.usr, s.favourites = "", user.User{}, nil
	s.mutex.Unlock()
	return s.store.Clear()
}

func (s *Session) Token() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.token
}

func (s *Session) User() user.User {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.usr
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Session) Favourites() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]string(nil), s.favourites...)
}

// ToggleFavourite adds or removes a proyek id and reports whether it is now a favourite.
func (s *Session) ToggleFavourite(proyekID string) (bool, error) {
	s.mutex.Lock()
	fav := true
	for i, id := range s.favourites {
		if id == proyekID {
			s.favourites = append(s.favourites[:i:i], s.favourites[i+1:]...)
			fav = false
			break
		}
	}
	if fav {
		s.favourites = append(s.favourites, proyekID)
	}
	ss := s.stored()
	s.mutex.Unlock()
	return fav, s.store.Save(ss)
}

// stored must be called with the lock held.
func (s *Session) stored() StoredSession {
	return StoredSession{Token: s.token, Favourites: append([]string(nil), s.favourites...)}
}
