package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrBadToken = errors.New("invalid token")

// portal roles
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// Claims identify a portal user. PlatformToken is forwarded on every call
// the user makes to the clinic platform.
type Claims struct {
	UserID        string `json:"uid"`
	FullName      string `json:"name,omitempty"`
	Role          string `json:"role"`
	Doctor        string `json:"doctor,omitempty"`
	PlatformToken string `json:"pt,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsDoctor() bool { return c.Role == RoleDoctor }

// DoctorID is the doctor record the user acts as. Doctors without an
// explicit record use their user id.
func (c *Claims) DoctorID() string {
	if c.Doctor != "" {
		return c.Doctor
	}
	return c.UserID
}

func MakeToken(c Claims, secret string, ttl time.Duration) (string, error) {
	if c.UserID == "" {
		return "", errors.New("token needs a user id")
	}
	if c.Role == "" {
		c.Role = RolePatient
	}
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   c.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}
	if c.Role != RolePatient && c.Role != RoleDoctor {
		return nil, ErrBadToken
	}
	return c, nil
}
