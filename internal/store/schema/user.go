package schema

import "time"

// User represents the users table. A user is identified by their wallet
// address; username and email are filled in during profile completion.
type User struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Address is the EIP-55 checksummed wallet address
	Address string `gorm:"column:address;not null;uniqueIndex;type:text"`
	// Username is the optional display handle
	Username string `gorm:"column:username;type:text"`
	// Email is the optional contact address used for email notifications
	Email string `gorm:"column:email;type:text"`
	// Completed indicates whether the profile-completion flow has finished
	Completed bool `gorm:"column:completed;not null;default:false"`
	// CreatedAt is the sign-up timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	NotificationSetting *NotificationSetting `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// DisplayName returns the name used in notification templates
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Address
}

// Follow represents the follows table, one row per follower/followee edge
type Follow struct {
	FollowerID int64     `gorm:"column:follower_id;primaryKey"`
	FolloweeID int64     `gorm:"column:followee_id;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Follow model
func (Follow) TableName() string {
	return "follows"
}
