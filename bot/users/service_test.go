package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexa-ai/vexabot/bot/api"
)

type fakeStore struct {
	accounts map[int64]*Account
	tokens   map[int64][]string

	linkErr error
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[int64]*Account),
		tokens:   make(map[int64][]string),
	}
}

func (s *fakeStore) FindByTelegramID(ctx context.Context, telegramID int64) (*Account, error) {
	acc, ok := s.accounts[telegramID]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (s *fakeStore) LinkTelegram(ctx context.Context, account Account) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	cp := account
	s.accounts[account.TelegramID] = &cp
	return nil
}

func (s *fakeStore) LatestToken(ctx context.Context, userID int64) (*Credential, error) {
	tokens := s.tokens[userID]
	if len(tokens) == 0 {
		return nil, nil
	}
	return &Credential{UserID: userID, Token: tokens[len(tokens)-1]}, nil
}

func (s *fakeStore) SaveToken(ctx context.Context, userID int64, token string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tokens[userID] = append(s.tokens[userID], token)
	return nil
}

type fakeAdmin struct {
	createUserErr  error
	createTokenErr error

	nextUserID int64
	existing   map[string]*api.User
	created    []string
	issued     []int64
	lookups    []string
}

func (a *fakeAdmin) CreateUser(ctx context.Context, email, name string) (*api.User, error) {
	if a.createUserErr != nil {
		return nil, a.createUserErr
	}
	a.nextUserID++
	a.created = append(a.created, email)
	return &api.User{ID: a.nextUserID, Email: email, Name: name}, nil
}

func (a *fakeAdmin) GetUserByEmail(ctx context.Context, email string) (*api.User, error) {
	a.lookups = append(a.lookups, email)
	if u, ok := a.existing[email]; ok {
		return u, nil
	}
	return nil, &api.APIError{StatusCode: 404, Body: "not found"}
}

func (a *fakeAdmin) CreateToken(ctx context.Context, userID int64) (*api.Token, error) {
	if a.createTokenErr != nil {
		return nil, a.createTokenErr
	}
	a.issued = append(a.issued, userID)
	return &api.Token{ID: 1, UserID: userID, Token: "vexa-token-abc"}, nil
}

func TestResolveUnregistered(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAdmin{})

	identity, err := svc.Resolve(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestResolveWithoutTokenIsUnregistered(t *testing.T) {
	store := newFakeStore()
	store.accounts[100] = &Account{ID: 1, Email: "a@b.io", TelegramID: 100}
	svc := NewService(store, &fakeAdmin{})

	identity, err := svc.Resolve(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestResolveReturnsLatestToken(t *testing.T) {
	store := newFakeStore()
	store.accounts[100] = &Account{ID: 1, Email: "a@b.io", TelegramID: 100}
	store.tokens[1] = []string{"old", "new"}
	svc := NewService(store, &fakeAdmin{})

	identity, err := svc.Resolve(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "a@b.io", identity.Account.Email)
	assert.Equal(t, "new", identity.Token)
}

func TestRegisterHappyPath(t *testing.T) {
	store := newFakeStore()
	admin := &fakeAdmin{}
	svc := NewService(store, admin)

	identity, err := svc.Register(context.Background(), " a@b.io ", 100, "alice", "Alice")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "a@b.io", identity.Account.Email)
	assert.Equal(t, int64(100), identity.Account.TelegramID)
	assert.Equal(t, "vexa-token-abc", identity.Token)

	// The user is now resolvable.
	resolved, err := svc.Resolve(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, identity.Token, resolved.Token)
}

func TestResolveIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.accounts[100] = &Account{ID: 1, Email: "a@b.io", TelegramID: 100}
	store.tokens[1] = []string{"tok"}
	admin := &fakeAdmin{}
	svc := NewService(store, admin)

	var first *Identity
	for i := 0; i < 3; i++ {
		identity, err := svc.Resolve(context.Background(), 100)
		require.NoError(t, err)
		require.NotNil(t, identity)
		if first == nil {
			first = identity
		}
		assert.Equal(t, first, identity)
	}
	assert.Empty(t, admin.created)
	assert.Empty(t, admin.issued)
}

func TestRegisterAdoptsExistingAccount(t *testing.T) {
	store := newFakeStore()
	admin := &fakeAdmin{
		createUserErr: &api.APIError{StatusCode: 409, Body: "email exists"},
		existing: map[string]*api.User{
			"a@b.io": {ID: 77, Email: "a@b.io"},
		},
	}
	svc := NewService(store, admin)

	identity, err := svc.Register(context.Background(), "a@b.io", 100, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(77), identity.Account.ID)
	assert.Equal(t, []string{"a@b.io"}, admin.lookups)
	assert.Equal(t, []int64{77}, admin.issued)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	admin := &fakeAdmin{}
	svc := NewService(newFakeStore(), admin)

	for _, email := range []string{"", "plain", "no-at.sign", "no@dot"} {
		_, err := svc.Register(context.Background(), email, 100, "", "")
		assert.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
	}
	assert.Empty(t, admin.created, "invalid emails must not reach the admin API")
}

func TestRegisterReportsFailingStep(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name  string
		setup func(*fakeStore, *fakeAdmin)
		step  Step
	}{
		{"create account", func(s *fakeStore, a *fakeAdmin) { a.createUserErr = boom }, StepCreateAccount},
		{"link", func(s *fakeStore, a *fakeAdmin) { s.linkErr = boom }, StepLink},
		{"issue token", func(s *fakeStore, a *fakeAdmin) { a.createTokenErr = boom }, StepIssueToken},
		{"persist token", func(s *fakeStore, a *fakeAdmin) { s.saveErr = boom }, StepIssueToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			admin := &fakeAdmin{}
			tc.setup(store, admin)
			svc := NewService(store, admin)

			_, err := svc.Register(context.Background(), "a@b.io", 100, "", "")
			require.Error(t, err)

			var regErr *RegistrationError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, tc.step, regErr.Step)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestRegisterDoesNotCompensateEarlierSteps(t *testing.T) {
	store := newFakeStore()
	admin := &fakeAdmin{createTokenErr: errors.New("token backend down")}
	svc := NewService(store, admin)

	_, err := svc.Register(context.Background(), "a@b.io", 100, "", "")
	require.Error(t, err)

	// The remote account and the local link persist despite the failure.
	assert.Equal(t, []string{"a@b.io"}, admin.created)
	acc, err := store.FindByTelegramID(context.Background(), 100)
	require.NoError(t, err)
	assert.NotNil(t, acc)
}
