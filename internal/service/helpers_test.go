package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/testutil"
	"github.com/Skotchmaster/auth_service/pkg/hash"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

var (
	testAccessSecret  = []byte(strings.Repeat("a", 32))
	testRefreshSecret = []byte(strings.Repeat("r", 32))
)

type sentMail struct {
	kind  events.MailKind
	to    string
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendVerification(_ context.Context, to, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: events.MailVerification, to: to, token: token})
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: events.MailPasswordReset, to: to, token: token})
	return nil
}

func (m *recordingMailer) last(kind events.MailKind) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.evs))
	for i, ev := range p.evs {
		out[i] = ev.Type
	}
	return out
}

// flakySessions wraps a real store and fails selected calls.
type flakySessions struct {
	SessionStore
	failPut       bool
	failDelete    bool
	failDeleteAll bool
}

var errCacheDown = errors.New("cache down")

func (f *flakySessions) Put(ctx context.Context, token, userID string, exp time.Time) error {
	if f.failPut {
		return errCacheDown
	}
	return f.SessionStore.Put(ctx, token, userID, exp)
}

func (f *flakySessions) Delete(ctx context.Context, token string) error {
	if f.failDelete {
		return errCacheDown
	}
	return f.SessionStore.Delete(ctx, token)
}

func (f *flakySessions) DeleteAll(ctx context.Context, userID string) (int, error) {
	if f.failDeleteAll {
		return 0, errCacheDown
	}
	return f.SessionStore.DeleteAll(ctx, userID)
}

// flakyLedger wraps a real ledger and fails revocations.
type flakyLedger struct {
	Ledger
	failRevoke bool
}

var errLedgerDown = errors.New("ledger down")

func (f *flakyLedger) RevokeRefresh(ctx context.Context, token string) (bool, error) {
	if f.failRevoke {
		return false, errLedgerDown
	}
	return f.Ledger.RevokeRefresh(ctx, token)
}

type testEnv struct {
	repo     *repo.GormRepo
	mr       *miniredis.Miniredis
	store    *session.RedisStore
	sessions *flakySessions
	ledger   *flakyLedger
	mailer   *recordingMailer
	events   *recordingPublisher
	auth     *AuthService
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	r := repo.New(testutil.InitTestDB(t))
	mr, rdb := testutil.InitTestRedis(t)
	store := session.NewRedisStore(rdb, session.WithRetries(1, 0))

	env := &testEnv{
		repo:     r,
		mr:       mr,
		store:    store,
		sessions: &flakySessions{SessionStore: store},
		ledger:   &flakyLedger{Ledger: r},
		mailer:   &recordingMailer{},
		events:   &recordingPublisher{},
	}
	hasher := hash.New(bcrypt.MinCost)

	env.auth = (&AuthService{
		Users:        r,
		Ledger:       env.ledger,
		Sessions:     env.sessions,
		Hasher:       hasher,
		AccessCodec:  tokens.NewCodec(tokens.KindAccess, testAccessSecret, 15*time.Minute),
		RefreshCodec: tokens.NewCodec(tokens.KindRefresh, testRefreshSecret, 7*24*time.Hour),
		Mailer:       env.mailer,
		Events:       env.events,
		StoreTimeout: time.Second,
	}).Init()
	env.users = &UserService{
		Users:        r,
		Hasher:       hasher,
		Sessions:     env.auth,
		Events:       env.events,
		StoreTimeout: time.Second,
	}
	return env
}

func (env *testEnv) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := env.auth.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Alice",
		LastName:  "Liddell",
	}, ClientInfo{IP: "127.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)
	return res
}
