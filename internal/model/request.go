package model

import "time"

type SignupRequest struct {
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Email              string     `json:"email"`
	Password           string     `json:"password"`
	PasswordConfirm    string     `json:"passwordConfirm"`
	Birthdate          *time.Time `json:"birthdate"`
	Sex                *string    `json:"sex"`
	Height             *float64   `json:"height"`
	Weight             *float64   `json:"weight"`
	TargetWeight       *float64   `json:"targetWeight"`
	ActivityLevel      *string    `json:"activityLevel"`
	FitnessGoal        *string    `json:"fitnessGoal"`
	DietaryPreferences []string   `json:"dietaryPreferences"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateProfileRequest uses pointers throughout so an absent field and a
// zero-valued field are distinguishable: only fields present in the JSON body
// are applied.
type UpdateProfileRequest struct {
	FirstName           *string    `json:"firstName"`
	LastName            *string    `json:"lastName"`
	Email               *string    `json:"email"`
	Birthdate           *time.Time `json:"birthdate"`
	Sex                 *string    `json:"sex"`
	Height              *float64   `json:"height"`
	Weight              *float64   `json:"weight"`
	TargetWeight        *float64   `json:"targetWeight"`
	ActivityLevel       *string    `json:"activityLevel"`
	FitnessGoal         *string    `json:"fitnessGoal"`
	DietaryPreferences  *[]string  `json:"dietaryPreferences"`
	CaloriesRecommended *float64   `json:"caloriesRecommended"`
	ProteinRecommended  *float64   `json:"proteinRecommended"`
}

type DeleteAccountRequest struct {
	CurrentPassword string `json:"currentPassword"`
}
