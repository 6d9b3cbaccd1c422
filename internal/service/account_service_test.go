package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fitness-accounts/internal/model"
	"fitness-accounts/internal/session"
	"fitness-accounts/pkg/apierror"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]model.User{}}
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailTaken
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.users[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	for id, existing := range f.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailTaken
		}
	}
	u.PasswordHash = stored.PasswordHash
	u.PasswordChangedAt = stored.PasswordChangedAt
	u.UpdatedAt = time.Now().UTC()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, userID string, passwordHash string, changedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func newTestAccountService(t *testing.T) (*AccountService, *fakeUserStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newFakeUserStore()
	tokens := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, session.NewStore(client, 7*24*time.Hour))

	return NewAccountService(store, tokens), store
}

func ptr[T any](v T) *T {
	return &v
}

func requireAPIStatus(t *testing.T, err error, status int) {
	t.Helper()

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.HTTPStatus)
}

func validSignup() model.SignupRequest {
	return model.SignupRequest{
		FirstName:       "Ann",
		LastName:        "Lee",
		Email:           "a@b.com",
		Password:        "secret123",
		PasswordConfirm: "secret123",
	}
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user and establishes session", func(t *testing.T) {
		svc, store := newTestAccountService(t)

		sess, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		require.NotEmpty(t, sess.AccessToken)
		require.NotEmpty(t, sess.RefreshToken)
		require.Equal(t, "a@b.com", sess.User.Email)
		require.Equal(t, "Ann Lee", sess.User.Name)

		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		require.Equal(t, model.RoleUser, stored.Role)
		require.Nil(t, stored.PasswordChangedAt, "initial creation must not set passwordChangedAt")

		require.NotEqual(t, "secret123", stored.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))

		active, err := svc.tokens.IsSessionActive(ctx, stored.ID, sess.RefreshToken)
		require.NoError(t, err)
		require.True(t, active)
	})

	t.Run("lowercases the email", func(t *testing.T) {
		svc, store := newTestAccountService(t)

		req := validSignup()
		req.Email = "Ann.Lee@Example.COM"
		_, err := svc.Signup(ctx, req)
		require.NoError(t, err)

		stored, err := store.FindByEmail(ctx, "ann.lee@example.com")
		require.NoError(t, err)
		require.Equal(t, "ann.lee@example.com", stored.Email)
	})

	t.Run("rejects duplicate email without touching the existing record", func(t *testing.T) {
		svc, store := newTestAccountService(t)

		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		original, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		dup := validSignup()
		dup.FirstName = "Other"
		_, err = svc.Signup(ctx, dup)
		requireAPIStatus(t, err, 409)

		require.Equal(t, 1, store.count())
		unchanged, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		require.Equal(t, original, unchanged)
	})

	t.Run("validates input", func(t *testing.T) {
		svc, _ := newTestAccountService(t)

		cases := []struct {
			name   string
			mutate func(*model.SignupRequest)
		}{
			{"malformed email", func(r *model.SignupRequest) { r.Email = "not-an-email" }},
			{"short password", func(r *model.SignupRequest) { r.Password = "short"; r.PasswordConfirm = "short" }},
			{"confirmation mismatch", func(r *model.SignupRequest) { r.PasswordConfirm = "different123" }},
			{"missing first name", func(r *model.SignupRequest) { r.FirstName = "" }},
			{"short last name", func(r *model.SignupRequest) { r.LastName = "Li" }},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				req := validSignup()
				tc.mutate(&req)
				_, err := svc.Signup(ctx, req)
				requireAPIStatus(t, err, 400)
			})
		}
	})

	t.Run("derives nutrition targets when the profile is complete", func(t *testing.T) {
		svc, store := newTestAccountService(t)

		req := validSignup()
		birthdate := time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC)
		req.Birthdate = &birthdate
		req.Sex = ptr("male")
		req.Height = ptr(180.0)
		req.Weight = ptr(80.0)
		req.ActivityLevel = ptr("moderate")

		_, err := svc.Signup(ctx, req)
		require.NoError(t, err)

		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		require.NotNil(t, stored.CaloriesRecommended)
		require.NotNil(t, stored.ProteinRecommended)
		require.Greater(t, *stored.CaloriesRecommended, 0.0)
		require.Equal(t, 128.0, *stored.ProteinRecommended)
	})

	t.Run("leaves targets unset for incomplete profiles", func(t *testing.T) {
		svc, store := newTestAccountService(t)

		req := validSignup()
		req.Weight = ptr(80.0)
		_, err := svc.Signup(ctx, req)
		require.NoError(t, err)

		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		require.Nil(t, stored.CaloriesRecommended)
		require.Nil(t, stored.ProteinRecommended)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		svc, _ := newTestAccountService(t)

		_, err := svc.Login(ctx, "nobody@b.com", "secret123")
		requireAPIStatus(t, err, 404)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := newTestAccountService(t)
		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)

		_, err = svc.Login(ctx, "a@b.com", "wrong-password")
		requireAPIStatus(t, err, 401)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "Incorrect Email or Password", apiErr.Message)
	})

	t.Run("success registers another session", func(t *testing.T) {
		svc, store := newTestAccountService(t)
		first, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)

		second, err := svc.Login(ctx, "a@b.com", "secret123")
		require.NoError(t, err)
		require.NotEmpty(t, second.AccessToken)

		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		for _, token := range []string{first.RefreshToken, second.RefreshToken} {
			active, err := svc.tokens.IsSessionActive(ctx, stored.ID, token)
			require.NoError(t, err)
			require.True(t, active)
		}
	})
}

func TestLogoutInvalidatesRefreshTokens(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestAccountService(t)

	sess, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	// The freshly issued refresh token works before logout.
	_, err = svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)

	stored, err := store.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, stored.ID))

	_, err = svc.Refresh(ctx, sess.RefreshToken)
	requireAPIStatus(t, err, 403)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects malformed token", func(t *testing.T) {
		svc, _ := newTestAccountService(t)

		_, err := svc.Refresh(ctx, "garbage")
		requireAPIStatus(t, err, 401)
	})

	t.Run("rejects unregistered token", func(t *testing.T) {
		svc, _ := newTestAccountService(t)
		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)

		// Valid signature but never registered: treated as reuse.
		stray, err := svc.tokens.IssueRefreshToken("some-user")
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, stray)
		requireAPIStatus(t, err, 403)
	})

	t.Run("issues a working access token without rotating the refresh token", func(t *testing.T) {
		svc, _ := newTestAccountService(t)
		sess, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)

		accessToken, err := svc.Refresh(ctx, sess.RefreshToken)
		require.NoError(t, err)

		user, err := svc.AuthenticateToken(ctx, accessToken)
		require.NoError(t, err)
		require.Equal(t, "a@b.com", user.Email)

		// Same refresh token stays valid for the next exchange.
		_, err = svc.Refresh(ctx, sess.RefreshToken)
		require.NoError(t, err)
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("requires all fields and matching confirmation", func(t *testing.T) {
		svc, store := newTestAccountService(t)
		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		err = svc.UpdatePassword(ctx, stored.ID, model.UpdatePasswordRequest{
			CurrentPassword: "secret123",
			NewPassword:     "newsecret123",
		})
		requireAPIStatus(t, err, 400)

		err = svc.UpdatePassword(ctx, stored.ID, model.UpdatePasswordRequest{
			CurrentPassword: "secret123",
			NewPassword:     "newsecret123",
			PasswordConfirm: "other123456",
		})
		requireAPIStatus(t, err, 400)
	})

	t.Run("rejects wrong current password", func(t *testing.T) {
		svc, store := newTestAccountService(t)
		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		err = svc.UpdatePassword(ctx, stored.ID, model.UpdatePasswordRequest{
			CurrentPassword: "wrong-password",
			NewPassword:     "newsecret123",
			PasswordConfirm: "newsecret123",
		})
		requireAPIStatus(t, err, 401)
	})

	t.Run("rehashes and backdates passwordChangedAt", func(t *testing.T) {
		svc, store := newTestAccountService(t)
		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		err = svc.UpdatePassword(ctx, stored.ID, model.UpdatePasswordRequest{
			CurrentPassword: "secret123",
			NewPassword:     "newsecret123",
			PasswordConfirm: "newsecret123",
		})
		require.NoError(t, err)

		updated, err := store.FindByID(ctx, stored.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.PasswordChangedAt)
		require.True(t, updated.PasswordChangedAt.Before(time.Now().UTC()))
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newsecret123")))

		_, err = svc.Login(ctx, "a@b.com", "secret123")
		requireAPIStatus(t, err, 401)
		_, err = svc.Login(ctx, "a@b.com", "newsecret123")
		require.NoError(t, err)
	})
}

func TestAuthenticateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a live token to its sanitized user", func(t *testing.T) {
		svc, _ := newTestAccountService(t)
		sess, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)

		token := strings.TrimPrefix(sess.AccessToken, "Bearer ")
		user, err := svc.AuthenticateToken(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "a@b.com", user.Email)
		require.Equal(t, "Ann", user.FirstName)
	})

	t.Run("rejects tokens for deleted users", func(t *testing.T) {
		svc, store := newTestAccountService(t)
		sess, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, stored.ID))

		_, err = svc.AuthenticateToken(ctx, sess.AccessToken)
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("rejects tokens issued before a password change", func(t *testing.T) {
		svc, store := newTestAccountService(t)
		_, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)

		// A token minted well before the change, still inside its 15-minute
		// expiry window.
		issuedAt := time.Now().UTC().Add(-5 * time.Minute)
		oldToken := signTestToken(t, "access-secret", stored.ID, issuedAt)

		_, err = svc.AuthenticateToken(ctx, oldToken)
		require.NoError(t, err, "token is valid before the password change")

		err = svc.UpdatePassword(ctx, stored.ID, model.UpdatePasswordRequest{
			CurrentPassword: "secret123",
			NewPassword:     "newsecret123",
			PasswordConfirm: "newsecret123",
		})
		require.NoError(t, err)

		_, err = svc.AuthenticateToken(ctx, oldToken)
		require.ErrorIs(t, err, model.ErrPasswordChanged)
	})
}

func signTestToken(t *testing.T, secret string, userID string, issuedAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(15 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*AccountService, *fakeUserStore, string) {
		svc, store := newTestAccountService(t)

		req := validSignup()
		req.Weight = ptr(80.0)
		req.FitnessGoal = ptr("build muscle")
		_, err := svc.Signup(ctx, req)
		require.NoError(t, err)

		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		return svc, store, stored.ID
	}

	t.Run("applies only provided fields, including zero values", func(t *testing.T) {
		svc, _, userID := setup(t)

		updated, err := svc.UpdateProfile(ctx, userID, model.UpdateProfileRequest{
			Weight: ptr(0.0),
		})
		require.NoError(t, err)
		require.NotNil(t, updated.Weight)
		require.Equal(t, 0.0, *updated.Weight, "explicit zero must not be dropped")
		require.NotNil(t, updated.FitnessGoal)
		require.Equal(t, "build muscle", *updated.FitnessGoal, "absent fields stay untouched")
	})

	t.Run("is idempotent", func(t *testing.T) {
		svc, store, userID := setup(t)

		req := model.UpdateProfileRequest{Weight: ptr(75.0), Sex: ptr("female")}
		_, err := svc.UpdateProfile(ctx, userID, req)
		require.NoError(t, err)
		first, err := store.FindByID(ctx, userID)
		require.NoError(t, err)

		_, err = svc.UpdateProfile(ctx, userID, req)
		require.NoError(t, err)
		second, err := store.FindByID(ctx, userID)
		require.NoError(t, err)

		first.UpdatedAt = second.UpdatedAt
		require.Equal(t, first, second)
	})

	t.Run("recomputes targets once the profile becomes complete", func(t *testing.T) {
		svc, _, userID := setup(t)

		birthdate := time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC)
		updated, err := svc.UpdateProfile(ctx, userID, model.UpdateProfileRequest{
			Birthdate:     &birthdate,
			Sex:           ptr("male"),
			Height:        ptr(180.0),
			ActivityLevel: ptr("moderate"),
		})
		require.NoError(t, err)
		require.NotNil(t, updated.CaloriesRecommended)
		require.NotNil(t, updated.ProteinRecommended)

		before := *updated.CaloriesRecommended
		updated, err = svc.UpdateProfile(ctx, userID, model.UpdateProfileRequest{
			Weight: ptr(90.0),
		})
		require.NoError(t, err)
		require.Greater(t, *updated.CaloriesRecommended, before)
	})

	t.Run("rejects malformed replacement email", func(t *testing.T) {
		svc, _, userID := setup(t)

		_, err := svc.UpdateProfile(ctx, userID, model.UpdateProfileRequest{
			Email: ptr("nope"),
		})
		requireAPIStatus(t, err, 400)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*AccountService, *fakeUserStore, Session, string) {
		svc, store := newTestAccountService(t)
		sess, err := svc.Signup(ctx, validSignup())
		require.NoError(t, err)
		stored, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		return svc, store, sess, stored.ID
	}

	t.Run("requires the current password", func(t *testing.T) {
		svc, _, _, userID := setup(t)

		err := svc.DeleteAccount(ctx, userID, "")
		requireAPIStatus(t, err, 400)

		err = svc.DeleteAccount(ctx, userID, "wrong-password")
		requireAPIStatus(t, err, 401)
	})

	t.Run("deletes the record and revokes sessions", func(t *testing.T) {
		svc, store, sess, userID := setup(t)

		require.NoError(t, svc.DeleteAccount(ctx, userID, "secret123"))

		_, err := store.FindByID(ctx, userID)
		require.ErrorIs(t, err, model.ErrUserNotFound)

		active, err := svc.tokens.IsSessionActive(ctx, userID, sess.RefreshToken)
		require.NoError(t, err)
		require.False(t, active, "deletion must cascade to the session store")

		_, err = svc.Refresh(ctx, sess.RefreshToken)
		requireAPIStatus(t, err, 403)
	})
}
