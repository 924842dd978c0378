// Package blobstore provides an in-memory registry of revocable blob-URLs
package blobstore

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const keyPrefix = "blob:"

var ErrBlobNotFound = errors.New("blob-URL is not registered or already revoked")

type blob struct {
	data  []byte
	ctype string
}

// Store - реестр временных бинарных ресурсов. У каждого ключа ровно один владелец,
// который обязан вызвать Revoke; ключ недействителен после отзыва.
type Store struct {
	mu    sync.Mutex
	blobs map[string]blob
}

func NewStore() *Store {
	return &Store{blobs: make(map[string]blob)}
}

// Create - регистрирует данные и возвращает новый blob-ключ.
// Срез передается во владение реестру, копий не делается.
func (s *Store) Create(data []byte, contentType string) string {
	key := keyPrefix + uuid.New().String()

	s.mu.Lock()
	s.blobs[key] = blob{data: data, ctype: contentType}
	s.mu.Unlock()

	return key
}

// Get - возвращает данные и content-type по ключу
func (s *Store) Get(key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[key]
	if !ok {
		return nil, "", ErrBlobNotFound
	}
	return b.data, b.ctype, nil
}

// Revoke - отзывает ключ. Повторный отзыв - no-op, владелец один и ошибкой это не считается.
func (s *Store) Revoke(key string) {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
}

// IsBlobKey reports whether the string looks like a key issued by this store.
func IsBlobKey(s string) bool {
	return strings.HasPrefix(s, keyPrefix)
}

// Len - количество живых ключей, используется при закрытии сессии и в тестах
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Close - страховочная зачистка при завершении сессии редактора
func (s *Store) Close() {
	s.mu.Lock()
	s.blobs = make(map[string]blob)
	s.mu.Unlock()
}
