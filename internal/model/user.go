package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the full credential-store record. PasswordHash never leaves the
// server; responses are built from the PublicUser and Profile views.
type User struct {
	ID                  string
	FirstName           string
	LastName            string
	Email               string
	PasswordHash        string
	PasswordChangedAt   *time.Time
	Role                string
	Birthdate           *time.Time
	Sex                 *string
	Height              *float64
	Weight              *float64
	TargetWeight        *float64
	ActivityLevel       *string
	FitnessGoal         *string
	DietaryPreferences  []string
	CaloriesRecommended *float64
	ProteinRecommended  *float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PasswordChangedAfter reports whether the password was rotated after the
// given token issue time, at second granularity to match JWT iat claims.
func (u User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthUser is the sanitized identity the auth middleware attaches to the
// request context.
type AuthUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func NewAuthUser(u User) AuthUser {
	return AuthUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// PublicUser is the minimal view embedded in the login/signup response.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func NewPublicUser(u User) PublicUser {
	return PublicUser{ID: u.ID, Name: u.FullName(), Email: u.Email}
}

// Profile is the full client-facing view of a user record.
type Profile struct {
	ID                  string     `json:"id"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Email               string     `json:"email"`
	Birthdate           *time.Time `json:"birthdate"`
	Sex                 *string    `json:"sex"`
	Height              *float64   `json:"height"`
	Weight              *float64   `json:"weight"`
	TargetWeight        *float64   `json:"targetWeight"`
	ActivityLevel       *string    `json:"activityLevel"`
	FitnessGoal         *string    `json:"fitnessGoal"`
	DietaryPreferences  []string   `json:"dietaryPreferences"`
	CaloriesRecommended *float64   `json:"caloriesRecommended"`
	ProteinRecommended  *float64   `json:"proteinRecommended"`
	CreatedAt           time.Time  `json:"createdAt"`
}

func NewProfile(u User) Profile {
	return Profile{
		ID:                  u.ID,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		Email:               u.Email,
		Birthdate:           u.Birthdate,
		Sex:                 u.Sex,
		Height:              u.Height,
		Weight:              u.Weight,
		TargetWeight:        u.TargetWeight,
		ActivityLevel:       u.ActivityLevel,
		FitnessGoal:         u.FitnessGoal,
		DietaryPreferences:  u.DietaryPreferences,
		CaloriesRecommended: u.CaloriesRecommended,
		ProteinRecommended:  u.ProteinRecommended,
		CreatedAt:           u.CreatedAt,
	}
}
