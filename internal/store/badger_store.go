package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"truthguard/pkg/domain"
)

var (
	badgerKeyToken = []byte("session/token")
	badgerKeyUser  = []byte("session/user")
	badgerKeyUsage = []byte("usage_count")
)

// BadgerStore keeps state in an embedded BadgerDB under the state dir.
// Durable local mode without the loose-file format of FileStore.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens a non-persistent database for tests.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory state db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) SaveToken(token string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKeyToken, []byte(token))
	})
}

func (s *BadgerStore) Token() (string, bool, error) {
	val, found, err := s.get(badgerKeyToken)
	if err != nil || !found {
		return "", false, err
	}
	return string(val), len(val) > 0, nil
}

func (s *BadgerStore) SaveUser(user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKeyUser, data)
	})
}

func (s *BadgerStore) User() (domain.User, bool, error) {
	val, found, err := s.get(badgerKeyUser)
	if err != nil || !found {
		return domain.User{}, false, err
	}
	var user domain.User
	if err := json.Unmarshal(val, &user); err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (s *BadgerStore) ClearSession() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(badgerKeyToken); err != nil {
			return err
		}
		return txn.Delete(badgerKeyUser)
	})
}

func (s *BadgerStore) UsageCount() (int, error) {
	val, found, err := s.get(badgerKeyUsage)
	if err != nil || !found {
		return 0, err
	}
	n, err := strconv.Atoi(string(val))
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (s *BadgerStore) SaveUsageCount(n int) error {
	if n < 0 {
		n = 0
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKeyUsage, []byte(strconv.Itoa(n)))
	})
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
