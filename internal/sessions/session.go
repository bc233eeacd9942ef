package sessions

import "time"

// Owner identifies who a refresh session was issued to. It carries enough
// of the principal to mint new access tokens without an identity lookup.
type Owner struct {
	Sub       string `bson:"sub" json:"sub"`
	Name      string `bson:"name,omitempty" json:"name,omitempty"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	Anonymous bool   `bson:"anonymous" json:"anonymous"`
}

// Session represents a persistent refresh session stored in Redis or MongoDB
type Session struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	RefreshToken string `bson:"refreshToken" json:"refreshToken"`
	Owner        `bson:",inline"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
