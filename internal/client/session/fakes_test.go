package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/repositories/kv"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu sync.Mutex

	current    *models.Session
	getErr     error
	getCalls   int
	setErr     error
	setCalls   []*models.Session
	signOutErr error
	signOuts   []string
	// signOutHang makes SignOut wait for ctx.
	signOutHang bool
	subErr      error
	sink        func(models.Event)
	subscribed  chan struct{}
	cancelled   bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subscribed: make(chan struct{}, 1)}
}

func (f *fakeProvider) RequestOneTimeCode(context.Context, string, models.Purpose, bool) error {
	return nil
}

func (f *fakeProvider) VerifyOneTimeCode(context.Context, string, string, models.Purpose) (*models.Session, error) {
	return nil, common.ErrInvalidOrExpiredCode
}

func (f *fakeProvider) GetCurrentSession(context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return f.current.Clone(), f.getErr
}

func (f *fakeProvider) SetSession(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, s.Clone())
	if f.setErr == nil {
		f.current = s.Clone()
	}
	return f.setErr
}

func (f *fakeProvider) SubscribeToSessionEvents(_ context.Context, fn func(models.Event)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.sink = fn
	select {
	case f.subscribed <- struct{}{}:
	default:
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled = true
	}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, scope)
	if f.signOutHang {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.signOutErr == nil {
		f.current = nil
	}
	return f.signOutErr
}

func (f *fakeProvider) UpdateCredential(context.Context, string, string) error {
	return nil
}

// emit delivers ev through the subscribed sink.
func (f *fakeProvider) emit(t *testing.T, ev models.Event) {
	t.Helper()
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	require.NotNil(t, sink, "not subscribed")
	sink(ev)
}

func (f *fakeProvider) waitSubscribed(t *testing.T) {
	t.Helper()
	select {
	case <-f.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never subscribed")
	}
}

type fakeProfiles struct {
	mu sync.Mutex

	profiles map[string]*models.UserProfile
	fetchErr error
	upsErr   error
	fetches  int
	upserts  []models.ProfileRecord
	// block, when set, holds FetchProfile until closed.
	block chan struct{}
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*models.UserProfile)}
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p.Clone(), nil
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, rec models.ProfileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsErr != nil {
		return f.upsErr
	}
	f.upserts = append(f.upserts, rec)
	p, ok := f.profiles[rec.ID]
	if !ok {
		p = &models.UserProfile{ID: rec.ID, Role: models.RoleUser}
		f.profiles[rec.ID] = p
	}
	p.Email, p.Name, p.Phone, p.Country = rec.Email, rec.Name, rec.Phone, rec.Country
	return nil
}

func (f *fakeProfiles) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newTestStorage() (*Storage, *kv.MemoryStore) {
	mem := kv.NewMemoryStore()
	return NewStorage(mem, NewKeys("test")), mem
}

// signToken builds an HS256 token; signatures are never verified client side.
func signToken(t *testing.T, sub, email string, exp time.Time, meta *models.SignupMetadata) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "email": email}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	if meta != nil {
		claims["user_metadata"] = map[string]any{
			"full_name": meta.FullName,
			"phone":     meta.Phone,
			"country":   meta.Country,
		}
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return tok
}

func testSession(sub string) *models.Session {
	return &models.Session{
		SubjectID:    sub,
		Email:        sub + "@example.com",
		AccessToken:  "access-" + sub,
		RefreshToken: "refresh-" + sub,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		TokenType:    "bearer",
	}
}
