package service

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fitness-accounts/internal/model"
	"fitness-accounts/pkg/apierror"
)

const (
	bcryptCost        = 12
	minNameLength     = 3
	minPasswordLength = 8
)

// UserStore is the slice of the credential store the account service needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateProfile(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string, changedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// Session is the outcome of a successful signup or login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         model.PublicUser
}

type AccountService struct {
	users  UserStore
	tokens *TokenService
}

func NewAccountService(users UserStore, tokens *TokenService) *AccountService {
	return &AccountService{users: users, tokens: tokens}
}

func (s *AccountService) Signup(ctx context.Context, req model.SignupRequest) (Session, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	taken, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return Session{}, err
	}
	if taken {
		return Session{}, apierror.New("CONFLICT", "Email already in use.", "", http.StatusConflict)
	}

	if err := validateSignup(req); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:                 uuid.NewString(),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		PasswordHash:       string(hash),
		Role:               model.RoleUser,
		Birthdate:          req.Birthdate,
		Sex:                req.Sex,
		Height:             req.Height,
		Weight:             req.Weight,
		TargetWeight:       req.TargetWeight,
		ActivityLevel:      req.ActivityLevel,
		FitnessGoal:        req.FitnessGoal,
		DietaryPreferences: req.DietaryPreferences,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	recalcNutritionTargets(&user)

	if err := s.users.Create(ctx, user); err != nil {
		// The unique index is the authoritative duplicate check; the lookup
		// above only gives the common case a friendlier path.
		if errors.Is(err, model.ErrEmailTaken) {
			return Session{}, apierror.New("CONFLICT", "Email already in use.", "", http.StatusConflict)
		}
		return Session{}, err
	}

	return s.establishSession(ctx, user)
}

func (s *AccountService) Login(ctx context.Context, email string, password string) (Session, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) {
		return Session{}, apierror.New("NOT_FOUND", "User not found", "", http.StatusNotFound)
	}
	if err != nil {
		return Session{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, apierror.New("UNAUTHORIZED", "Incorrect Email or Password", "", http.StatusUnauthorized)
	}

	return s.establishSession(ctx, user)
}

// Logout revokes every session of the user. Clearing the cookie is the
// handler's job and happens regardless of whether a user was resolved.
func (s *AccountService) Logout(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllSessions(ctx, userID)
}

// Refresh exchanges a still-registered refresh token for a new access token.
// The refresh token itself is not rotated; it stays valid until logout or the
// session key's expiry.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", apierror.New("UNAUTHORIZED", "Token refresh failed.", "", http.StatusUnauthorized)
	}

	active, err := s.tokens.IsSessionActive(ctx, claims.UserID, refreshToken)
	if err != nil {
		return "", err
	}
	if !active {
		return "", apierror.New("FORBIDDEN", "Invalid or expired refresh token.", "", http.StatusForbidden)
	}

	return s.tokens.IssueAccessToken(claims.UserID)
}

func (s *AccountService) UpdatePassword(ctx context.Context, userID string, req model.UpdatePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" || req.PasswordConfirm == "" {
		return apierror.New("BAD_REQUEST", "All fields are required.", "", http.StatusBadRequest)
	}
	if req.NewPassword != req.PasswordConfirm {
		return apierror.New("BAD_REQUEST", "New passwords do not match.", "", http.StatusBadRequest)
	}
	if len(req.NewPassword) < minPasswordLength {
		return apierror.New("BAD_REQUEST", "Password must be at least 8 characters.", "", http.StatusBadRequest)
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.New("NOT_FOUND", "User not found.", "", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return apierror.New("UNAUTHORIZED", "Incorrect current password.", "", http.StatusUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return err
	}

	// Backdated by a second so a token minted in the same second as the
	// change is not rejected by the staleness gate.
	changedAt := time.Now().UTC().Add(-time.Second)
	return s.users.UpdatePassword(ctx, userID, string(hash), changedAt)
}

func (s *AccountService) Profile(ctx context.Context, userID string) (model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.New("NOT_FOUND", "User not found", "", http.StatusNotFound)
	}
	return user, err
}

// UpdateProfile applies only the fields present in the request. Presence is
// carried by pointers, so zero and empty values are honored instead of being
// mistaken for "not provided".
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.New("NOT_FOUND", "User not found", "", http.StatusNotFound)
	}
	if err != nil {
		return model.User{}, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if !validEmail(email) {
			return model.User{}, apierror.New("BAD_REQUEST", "Invalid Email.", "", http.StatusBadRequest)
		}
		user.Email = email
	}
	if req.Birthdate != nil {
		user.Birthdate = req.Birthdate
	}
	if req.Sex != nil {
		user.Sex = req.Sex
	}
	if req.Height != nil {
		user.Height = req.Height
	}
	if req.Weight != nil {
		user.Weight = req.Weight
	}
	if req.TargetWeight != nil {
		user.TargetWeight = req.TargetWeight
	}
	if req.ActivityLevel != nil {
		user.ActivityLevel = req.ActivityLevel
	}
	if req.FitnessGoal != nil {
		user.FitnessGoal = req.FitnessGoal
	}
	if req.DietaryPreferences != nil {
		user.DietaryPreferences = *req.DietaryPreferences
	}

	// Explicit overrides win; otherwise recompute from the updated attributes.
	if req.CaloriesRecommended != nil || req.ProteinRecommended != nil {
		if req.CaloriesRecommended != nil {
			user.CaloriesRecommended = req.CaloriesRecommended
		}
		if req.ProteinRecommended != nil {
			user.ProteinRecommended = req.ProteinRecommended
		}
	} else {
		recalcNutritionTargets(&user)
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			return model.User{}, apierror.New("CONFLICT", "Email already in use.", "", http.StatusConflict)
		}
		return model.User{}, err
	}

	return user, nil
}

// DeleteAccount removes the user after password confirmation. Sessions are
// revoked first so a failed row delete cannot leave live refresh tokens
// behind a missing account.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string, currentPassword string) error {
	if currentPassword == "" {
		return apierror.New("BAD_REQUEST", "Current password is required.", "", http.StatusBadRequest)
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.New("NOT_FOUND", "User not found.", "", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return apierror.New("UNAUTHORIZED", "Incorrect password. Account deletion failed.", "", http.StatusUnauthorized)
	}

	if err := s.tokens.RevokeAllSessions(ctx, userID); err != nil {
		return err
	}

	return s.users.Delete(ctx, userID)
}

// AuthenticateToken resolves an access token into its user for the auth
// middleware. A token issued before the user's last password change is
// treated as stale even when its expiry has not passed.
func (s *AccountService) AuthenticateToken(ctx context.Context, tokenString string) (model.AuthUser, error) {
	claims, err := s.tokens.VerifyAccessToken(tokenString)
	if err != nil {
		return model.AuthUser{}, model.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthUser{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.AuthUser{}, err
	}

	if user.PasswordChangedAfter(claims.IssuedAt) {
		return model.AuthUser{}, model.ErrPasswordChanged
	}

	return model.NewAuthUser(user), nil
}

func (s *AccountService) establishSession(ctx context.Context, user model.User) (Session, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return Session{}, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return Session{}, err
	}

	if err := s.tokens.RegisterSession(ctx, user.ID, refreshToken); err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         model.NewPublicUser(user),
	}, nil
}

func validateSignup(req model.SignupRequest) error {
	if req.FirstName == "" {
		return apierror.New("BAD_REQUEST", "Please enter your first name", "", http.StatusBadRequest)
	}
	if len(req.FirstName) < minNameLength {
		return apierror.New("BAD_REQUEST", "First name must be at least 3 characters.", "", http.StatusBadRequest)
	}
	if req.LastName == "" {
		return apierror.New("BAD_REQUEST", "Please enter your last name", "", http.StatusBadRequest)
	}
	if len(req.LastName) < minNameLength {
		return apierror.New("BAD_REQUEST", "Last name must be at least 3 characters.", "", http.StatusBadRequest)
	}
	if req.Email == "" {
		return apierror.New("BAD_REQUEST", "Please enter your email", "", http.StatusBadRequest)
	}
	if !validEmail(req.Email) {
		return apierror.New("BAD_REQUEST", "Invalid Email.", "", http.StatusBadRequest)
	}
	if req.Password == "" {
		return apierror.New("BAD_REQUEST", "Please enter your password", "", http.StatusBadRequest)
	}
	if len(req.Password) < minPasswordLength {
		return apierror.New("BAD_REQUEST", "Password must be at least 8 characters.", "", http.StatusBadRequest)
	}
	if req.Password != req.PasswordConfirm {
		return apierror.New("BAD_REQUEST", "Passwords do not match!", "", http.StatusBadRequest)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display-name forms; only the bare address is acceptable input.
	return addr.Address == email && strings.Contains(email, ".")
}

// recalcNutritionTargets derives daily calorie and protein recommendations
// (Mifflin-St Jeor with an activity multiplier, adjusted 10% toward the
// fitness goal, protein at 1.6 g per kg) once the profile carries everything
// the formula needs. Incomplete profiles keep their stored values.
func recalcNutritionTargets(u *model.User) {
	if u.Birthdate == nil || u.Sex == nil || u.Height == nil || u.Weight == nil || u.ActivityLevel == nil {
		return
	}

	age := yearsSince(*u.Birthdate)
	if age <= 0 {
		return
	}

	bmr := 10*(*u.Weight) + 6.25*(*u.Height) - 5*float64(age)
	if strings.EqualFold(*u.Sex, "male") {
		bmr += 5
	} else {
		bmr -= 161
	}

	calories := bmr * activityMultiplier(*u.ActivityLevel)
	if u.FitnessGoal != nil {
		switch strings.ToLower(strings.TrimSpace(*u.FitnessGoal)) {
		case "lose", "lose weight", "weight loss":
			calories *= 0.9
		case "gain", "gain weight", "build muscle":
			calories *= 1.1
		}
	}

	calories = math.Round(calories)
	protein := math.Round(1.6 * (*u.Weight))
	u.CaloriesRecommended = &calories
	u.ProteinRecommended = &protein
}

func activityMultiplier(level string) float64 {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "sedentary":
		return 1.2
	case "light", "lightly active":
		return 1.375
	case "moderate", "moderately active":
		return 1.55
	case "active", "very active":
		return 1.725
	case "athlete", "extra active":
		return 1.9
	default:
		return 1.2
	}
}

func yearsSince(birthdate time.Time) int {
	now := time.Now().UTC()
	years := now.Year() - birthdate.Year()
	if now.YearDay() < birthdate.YearDay() {
		years--
	}
	return years
}
