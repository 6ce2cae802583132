package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	tokenSalt = []byte("tutora/user/password-reset")
	tokenB32  = base32.StdEncoding.WithPadding(base32.NoPadding)
	nowFunc   = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID hides the raw user ID in password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// resetTokens issues and checks password reset tokens of the form "<issue hour>-<signature>".
// The signature covers the password hash and the last login, so a token is void
// once the password changes or the user logs in.
type resetTokens struct {
	key     []byte
	timeout time.Duration
}

func newResetTokens(secret string, timeout time.Duration) resetTokens {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), secret...))
	return resetTokens{key: key[:], timeout: timeout}
}

func hoursSinceEpoch(t time.Time) int64 { return t.Unix() / 3600 }

func (rt resetTokens) issue(usr User) string {
	return rt.tokenAt(usr, hoursSinceEpoch(nowFunc()))
}

func (rt resetTokens) tokenAt(usr User, hour int64) string {
	h := hmac.New(sha256.New, rt.key)
	h.Write([]byte(usr.ID))
	h.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		h.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	h.Write([]byte(strconv.FormatInt(hour, 10)))
	return tokenB32.EncodeToString([]byte(strconv.FormatInt(hour, 10))) + "-" +
		base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (rt resetTokens) check(usr User, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return errInvalidToken
	}
	raw, err := tokenB32.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	hour, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(rt.tokenAt(usr, hour)), []byte(token)) {
		return errInvalidToken
	}
	if time.Duration(hoursSinceEpoch(nowFunc())-hour)*time.Hour > rt.timeout {
		return errTokenExpired
	}
	return nil
}
