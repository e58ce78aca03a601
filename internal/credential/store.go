package credential

import (
	"context"
	"encoding/json"
	"sync"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/storage"
)

// Store is the durable representation of the credential list. Every method
// is a full read-modify-write round-trip against the storage backend, so
// positional indexes are only stable between calls from the same caller.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
}

// NewStore creates a credential store over an initialized backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Load reads the persisted list. A missing document means an empty list;
// an unparsable one is StorageCorrupt.
func (s *Store) Load(ctx context.Context) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ([]*Credential, error) {
	data, err := s.backend.Load(ctx, storage.KeyCredentials)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var list []*Credential
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, apperrors.StorageCorrupt(err)
	}
	return list, nil
}

// Save writes the full list as pretty two-space JSON. The backend write is
// atomic with respect to Load.
func (s *Store) Save(ctx context.Context, list []*Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, list)
}

func (s *Store) saveLocked(ctx context.Context, list []*Credential) error {
	if list == nil {
		list = []*Credential{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return s.backend.Save(ctx, storage.KeyCredentials, data)
}

// Enumerate returns clones of the persisted records in order.
func (s *Store) Enumerate(ctx context.Context) ([]*Credential, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Credential, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out, nil
}

// Append adds one record and returns its index.
func (s *Store) Append(ctx context.Context, cred *Credential) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	list = append(list, cred.Clone())
	if err := s.saveLocked(ctx, list); err != nil {
		return 0, err
	}
	return len(list) - 1, nil
}

// ImportResult summarizes an Import call.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Import merges already-normalized records into the store.
//
// With replaceExisting, the incoming records become the whole list. Without
// it, existing records are indexed by refresh token (falling back to access
// token) and incoming records overlay matching entries or append as new.
// filterDisabled drops incoming records whose source flagged them disabled.
func (s *Store) Import(ctx context.Context, records []*Credential, replaceExisting, filterDisabled bool) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result ImportResult
	kept := make([]*Credential, 0, len(records))
	for _, rec := range records {
		if filterDisabled && !rec.Enabled {
			result.Skipped++
			continue
		}
		kept = append(kept, rec.Clone())
	}

	var list []*Credential
	if replaceExisting {
		list = kept
		result.Imported = len(kept)
	} else {
		var err error
		list, err = s.loadLocked(ctx)
		if err != nil {
			return result, err
		}
		index := make(map[string]*Credential, len(list))
		for _, existing := range list {
			if existing.RefreshToken != "" {
				index[existing.RefreshToken] = existing
			} else if existing.AccessToken != "" {
				index[existing.AccessToken] = existing
			}
		}
		for _, rec := range kept {
			key := rec.RefreshToken
			if key == "" {
				key = rec.AccessToken
			}
			if existing, ok := index[key]; ok && key != "" {
				overlay(existing, rec)
			} else {
				list = append(list, rec)
				if key != "" {
					index[key] = rec
				}
			}
			result.Imported++
		}
	}

	if err := s.saveLocked(ctx, list); err != nil {
		return result, err
	}
	result.Total = len(list)
	return result, nil
}

// overlay copies the non-empty fields of src onto dst. Enabled always
// follows the incoming record; a set project id is never overwritten.
func overlay(dst, src *Credential) {
	if src.AccessToken != "" {
		dst.AccessToken = src.AccessToken
	}
	if src.RefreshToken != "" {
		dst.RefreshToken = src.RefreshToken
	}
	if src.ExpiresIn != 0 {
		dst.ExpiresIn = src.ExpiresIn
	}
	if src.IssuedAt != 0 {
		dst.IssuedAt = src.IssuedAt
	}
	if src.ProjectID != "" && dst.ProjectID == "" {
		dst.ProjectID = src.ProjectID
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.CreatedAt != 0 {
		dst.CreatedAt = src.CreatedAt
	}
	dst.Enabled = src.Enabled
}

// ReplaceAt swaps the record at index, used by explicit re-authorization.
func (s *Store) ReplaceAt(ctx context.Context, index int, cred *Credential) error {
	return s.mutateAt(ctx, index, func(list []*Credential) []*Credential {
		list[index] = cred.Clone()
		return list
	})
}

// RemoveAt deletes the record at index.
func (s *Store) RemoveAt(ctx context.Context, index int) error {
	return s.mutateAt(ctx, index, func(list []*Credential) []*Credential {
		return append(list[:index], list[index+1:]...)
	})
}

// SetEnabled toggles the record at index.
func (s *Store) SetEnabled(ctx context.Context, index int, enabled bool) error {
	return s.mutateAt(ctx, index, func(list []*Credential) []*Credential {
		list[index].Enabled = enabled
		return list
	})
}

// UpdateByToken applies fn to the record with the given refresh token.
// Missing tokens are ignored; the pool uses this to write back refreshed
// access tokens without depending on positional indexes.
func (s *Store) UpdateByToken(ctx context.Context, refreshToken string, fn func(*Credential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	for _, cred := range list {
		if cred.RefreshToken == refreshToken {
			fn(cred)
			return s.saveLocked(ctx, list)
		}
	}
	return nil
}

// RemoveDisabled sweeps every disabled record and reports how many went.
func (s *Store) RemoveDisabled(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	kept := list[:0]
	removed := 0
	for _, cred := range list {
		if cred.Enabled {
			kept = append(kept, cred)
		} else {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveLocked(ctx, kept)
}

func (s *Store) mutateAt(ctx context.Context, index int, fn func([]*Credential) []*Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return apperrors.BadRequest("credential index out of range")
	}
	return s.saveLocked(ctx, fn(list))
}
