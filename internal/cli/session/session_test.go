package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/argscan/argscan/internal/cli/kv"
)

// failingKV fails every write, to check that memory state stays coherent
type failingKV struct {
	kv.Store
}

func (failingKV) Set(string, string) error { return errors.New("disk full") }
func (failingKV) Delete(string) error      { return errors.New("disk full") }

// identityFailingKV stores tokens but refuses profiles
type identityFailingKV struct {
	kv.Store
}

func (s identityFailingKV) Set(key, value string) error {
	if key == IdentityKey {
		return errors.New("disk full")
	}
	return s.Store.Set(key, value)
}

type fetcherFunc func(ctx context.Context) (json.RawMessage, error)

func (f fetcherFunc) Me(ctx context.Context) (json.RawMessage, error) { return f(ctx) }

func TestNew_EmptyStore(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())

	require.Empty(t, s.Credential())
	require.Nil(t, s.Identity())
	require.False(t, s.IsLoggedIn())
	require.False(t, s.IsAdmin())
	require.Equal(t, RoleUser, s.Role())
}

func TestNew_Rehydrates(t *testing.T) {
	store := kv.NewMemory(map[string]string{
		TokenKey:    "tok-1",
		IdentityKey: `{"userId":7,"username":"ana","email":"ana@example.org","role":"ADMIN","status":"ACTIVE"}`,
	})

	s := New(store, zerolog.Nop())

	require.Equal(t, "tok-1", s.Credential())
	require.True(t, s.IsLoggedIn())
	require.True(t, s.IsAdmin())
	require.Equal(t, RoleAdmin, s.Role())
	require.Equal(t, "ana", s.Username())
	require.Equal(t, "ana@example.org", s.Email())
	require.EqualValues(t, 7, s.Identity().UserID)
}

func TestNew_CorruptedIdentityIsRemoved(t *testing.T) {
	store := kv.NewMemory(map[string]string{
		TokenKey:    "tok-1",
		IdentityKey: `{"username":`,
	})

	s := New(store, zerolog.Nop())

	require.Nil(t, s.Identity())
	require.Equal(t, "tok-1", s.Credential())

	_, ok, err := store.Get(IdentityKey)
	require.NoError(t, err)
	require.False(t, ok, "corrupted identity must be deleted")
}

func TestNew_PlaceholderIdentityIsAbsent(t *testing.T) {
	for _, raw := range []string{"null", "undefined", ""} {
		store := kv.NewMemory(map[string]string{IdentityKey: raw})
		s := New(store, zerolog.Nop())
		require.Nil(t, s.Identity(), raw)
	}
}

func TestSetCredential_LeavesIdentity(t *testing.T) {
	store := kv.NewMemory(nil)
	s := New(store, zerolog.Nop())

	require.NoError(t, s.SetIdentity(Identity{Username: "ana", Role: RoleUser}))
	require.NoError(t, s.SetCredential("tok-2"))

	require.Equal(t, "ana", s.Username())
	v, ok, _ := store.Get(TokenKey)
	require.True(t, ok)
	require.Equal(t, "tok-2", v)
}

func TestSetIdentity_AcceptsAnyShape(t *testing.T) {
	store := kv.NewMemory(nil)
	s := New(store, zerolog.Nop())

	require.NoError(t, s.SetIdentity(map[string]any{
		"username": "bo",
		"email":    "bo@example.org",
		"role":     "ADMIN",
		"extra":    []int{1, 2},
	}))
	require.True(t, s.IsAdmin())

	raw, ok, _ := store.Get(IdentityKey)
	require.True(t, ok)
	require.Contains(t, raw, `"extra":[1,2]`)

	require.NoError(t, s.SetIdentity(json.RawMessage(`{"username":"cy"}`)))
	require.Equal(t, "cy", s.Username())
	require.Equal(t, RoleUser, s.Role())

	require.NoError(t, s.SetIdentity(nil))
	require.Nil(t, s.Identity())
}

func TestSetIdentity_InvalidRawIsRejected(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())
	require.NoError(t, s.SetIdentity(Identity{Username: "ana"}))

	require.Error(t, s.SetIdentity(json.RawMessage(`{broken`)))
	require.Equal(t, "ana", s.Username())
}

func TestClear_IsIdempotent(t *testing.T) {
	store := kv.NewMemory(nil)
	s := New(store, zerolog.Nop())
	require.NoError(t, s.Establish("tok", Identity{Username: "ana", Role: RoleAdmin}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Clear())
		require.Empty(t, s.Credential())
		require.Nil(t, s.Identity())
		require.False(t, s.IsAdmin())
	}

	_, ok, _ := store.Get(TokenKey)
	require.False(t, ok)
	_, ok, _ = store.Get(IdentityKey)
	require.False(t, ok)

	// rehydrating from the cleared store yields an empty session
	require.False(t, New(store, zerolog.Nop()).IsLoggedIn())
}

func TestClear_MemoryClearedEvenIfKVFails(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())
	require.NoError(t, s.Establish("tok", Identity{Username: "ana"}))

	s.kv = failingKV{}
	require.Error(t, s.Clear())
	require.False(t, s.IsLoggedIn())
	require.Nil(t, s.Identity())
}

func TestClear_Concurrent(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())
	require.NoError(t, s.Establish("tok", Identity{Username: "ana"}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Clear()
		}()
	}
	wg.Wait()

	require.False(t, s.IsLoggedIn())
}

func TestEstablish_RollsBackOnFailure(t *testing.T) {
	s := New(failingKV{kv.NewMemory(nil)}, zerolog.Nop())

	require.Error(t, s.Establish("tok", Identity{Username: "ana"}))
	require.False(t, s.IsLoggedIn())
	require.Nil(t, s.Identity())
}

func TestEstablish_TokenWriteFailureKeepsPreviousSession(t *testing.T) {
	store := kv.NewMemory(map[string]string{
		TokenKey:    "old-tok",
		IdentityKey: `{"username":"old"}`,
	})
	s := New(store, zerolog.Nop())
	s.kv = failingKV{store}

	require.ErrorContains(t, s.Establish("new-tok", Identity{Username: "ana"}), "failed to persist token")
	require.Equal(t, "old-tok", s.Credential())
	require.Equal(t, "old", s.Username())
}

func TestEstablish_IdentityWriteFailureLeavesNoSession(t *testing.T) {
	store := kv.NewMemory(nil)
	s := New(identityFailingKV{store}, zerolog.Nop())

	require.ErrorContains(t, s.Establish("tok", Identity{Username: "ana"}), "failed to persist user info")
	require.False(t, s.IsLoggedIn())
	require.Nil(t, s.Identity())

	_, ok, err := store.Get(TokenKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetters_FailureLeavesMemory(t *testing.T) {
	s := New(failingKV{kv.NewMemory(nil)}, zerolog.Nop())

	require.Error(t, s.SetCredential("tok"))
	require.False(t, s.IsLoggedIn())

	require.Error(t, s.SetIdentity(Identity{Username: "ana"}))
	require.Nil(t, s.Identity())
}

func TestCorruptSessionFileIsReplacedOnLogin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := New(kv.NewFile(path), zerolog.Nop())
	require.False(t, s.IsLoggedIn())
	require.NoError(t, s.Clear())
	require.NoError(t, s.Establish("tok", Identity{Username: "ana"}))

	restarted := New(kv.NewFile(path), zerolog.Nop())
	require.True(t, restarted.IsLoggedIn())
	require.Equal(t, "ana", restarted.Username())
}

func TestIdentity_ReturnsCopy(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())
	require.NoError(t, s.SetIdentity(Identity{Username: "ana", Role: RoleUser}))

	id := s.Identity()
	id.Role = RoleAdmin
	require.False(t, s.IsAdmin())
}

func TestFetchIdentity(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())
	require.NoError(t, s.Establish("tok", Identity{Username: "old"}))

	id, err := s.FetchIdentity(context.Background(), fetcherFunc(func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`{"username":"new","email":"n@example.org","role":"ADMIN"}`), nil
	}))
	require.NoError(t, err)
	require.Equal(t, "new", id.Username)
	require.True(t, s.IsAdmin())
}

func TestFetchIdentity_FailureLeavesState(t *testing.T) {
	s := New(kv.NewMemory(nil), zerolog.Nop())
	require.NoError(t, s.Establish("tok", Identity{Username: "old"}))

	boom := errors.New("boom")
	_, err := s.FetchIdentity(context.Background(), fetcherFunc(func(context.Context) (json.RawMessage, error) {
		return nil, boom
	}))
	require.ErrorIs(t, err, boom)
	require.Equal(t, "old", s.Username())
	require.Equal(t, "tok", s.Credential())
}
