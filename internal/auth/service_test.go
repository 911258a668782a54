package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/backend-agrilink/internal/common"
)

type fakeStore struct {
	users    map[uuid.UUID]UserRow
	sessions map[string]SessionRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uuid.UUID]UserRow{},
		sessions: map[string]SessionRow{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, u UserRow) (UserRow, error) {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return UserRow{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
		}
		if existing.Email == u.Email {
			return UserRow{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (UserRow, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return UserRow{}, ErrNotFound
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (UserRow, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return UserRow{}, ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (UserRow, error) {
	u, ok := f.users[id]
	if !ok {
		return UserRow{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s SessionRow) (uuid.UUID, error) {
	s.ID = uuid.New()
	f.sessions[s.RefreshToken] = s
	return s.ID, nil
}

func (f *fakeStore) GetSessionByToken(_ context.Context, hashedToken string) (SessionRow, error) {
	s, ok := f.sessions[hashedToken]
	if !ok {
		return SessionRow{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) RotateSessionToken(_ context.Context, id uuid.UUID, hashedToken string, expiresAt time.Time) error {
	for key, s := range f.sessions {
		if s.ID == id {
			delete(f.sessions, key)
			s.RefreshToken = hashedToken
			s.ExpiresAt = expiresAt
			f.sessions[hashedToken] = s
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) DeleteSessionByToken(_ context.Context, hashedToken string) error {
	delete(f.sessions, hashedToken)
	return nil
}

func (f *fakeStore) DeleteSessionsByUser(_ context.Context, userID uuid.UUID) error {
	for key, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, key)
		}
	}
	return nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Store:           store,
		Secret:          "test-secret-please-rotate",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func registerUser(t *testing.T, svc *Service, username, email, userType string) User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: "correct horse battery",
		UserType: userType,
	})
	require.NoError(t, err)
	return user
}

func TestRegisterDefaultsToBuyer(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	user := registerUser(t, svc, "wati", "wati@example.com", "")
	require.Equal(t, "buyer", user.UserType)
	require.Equal(t, "wati", user.Username)
	require.False(t, user.IsVerified)
}

func TestRegisterRejectsUnknownUserType(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "wati",
		Email:    "wati@example.com",
		Password: "correct horse battery",
		UserType: "admin",
	})
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "wati",
		Email:    "wati@example.com",
		Password: "short",
	})
	require.Error(t, err)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "other",
		Email:    "wati@example.com",
		Password: "correct horse battery",
	})
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)
	require.Equal(t, 409, appErr.HTTPStatus)
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "wati",
		Email:    "new@example.com",
		Password: "correct horse battery",
	})
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "USERNAME_TAKEN", appErr.Code)
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	byUsername, err := svc.Login(context.Background(), "wati", "correct horse battery", "go-test", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, byUsername.AccessToken)
	require.NotEmpty(t, byUsername.RefreshToken)
	require.Equal(t, "farmer", byUsername.User.UserType)

	byEmail, err := svc.Login(context.Background(), "Wati@Example.com", "correct horse battery", "go-test", "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, byUsername.User.ID, byEmail.User.ID)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	_, wrongPassword := svc.Login(context.Background(), "wati", "nope nope nope", "", "")
	_, unknownUser := svc.Login(context.Background(), "nobody", "correct horse battery", "", "")

	var appErr *common.AppError
	require.ErrorAs(t, wrongPassword, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
	require.ErrorAs(t, unknownUser, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	user := registerUser(t, svc, "wati", "wati@example.com", "both")

	result, err := svc.Login(context.Background(), "wati", "correct horse battery", "", "")
	require.NoError(t, err)

	userID, userType, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
	require.Equal(t, "both", userType)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	result, err := svc.Login(context.Background(), "wati", "correct horse battery", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(16 * time.Minute) })
	_, _, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsForeignAlgorithm(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	token, err := jwt.NewBuilder().
		Subject(uuid.NewString()).
		Issuer("backend-agrilink").
		Audience([]string{"agrilink-frontend"}).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS384, []byte("test-secret-please-rotate")))
	require.NoError(t, err)

	_, _, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	_, _, err := svc.ParseAccessToken("not-a-token")
	require.Error(t, err)
	_, _, err = svc.ParseAccessToken("")
	require.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	login, err := svc.Login(context.Background(), "wati", "correct horse battery", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old token is no longer honoured once rotated.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)

	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	login, err := svc.Login(context.Background(), "wati", "correct horse battery", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(721 * time.Hour) })
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
	require.Empty(t, store.sessions)
}

func TestLogoutRevokesSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	registerUser(t, svc, "wati", "wati@example.com", "farmer")

	login, err := svc.Login(context.Background(), "wati", "correct horse battery", "", "")
	require.NoError(t, err)
	require.Len(t, store.sessions, 1)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))
	require.Empty(t, store.sessions)

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
}

func TestMeReturnsProfile(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	user := registerUser(t, svc, "wati", "wati@example.com", "farmer")

	got, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)

	_, err = svc.Me(context.Background(), uuid.NewString())
	require.Error(t, err)
	_, err = svc.Me(context.Background(), "not-a-uuid")
	require.Error(t, err)
}
