package models

// UserType is the role of an account.
type UserType string

const (
	UserTypePatient       UserType = "patient"
	UserTypeDoctor        UserType = "doctor"
	UserTypeAdministrator UserType = "administrator"
	UserTypeModerator     UserType = "moderator"
)

// User represents a clinic account.
type User struct {
	BaseModel
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Phone         string   `gorm:"uniqueIndex" json:"phone"`
	Email         *string  `gorm:"uniqueIndex" json:"email,omitempty"`
	PasswordHash  string   `json:"-"`
	UserType      UserType `gorm:"type:varchar(32);index" json:"user_type"`
	PhoneVerified bool     `json:"phone_verified"`
}
