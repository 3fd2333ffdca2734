package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smkgaleri/galeri/core"
)

var (
	tokenSalt = []byte("galeri.core.user.password_reset")
	tsEncoder = base32.StdEncoding.WithPadding(base32.NoPadding)

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// TokenGenerator makes and checks password reset tokens.
// A token is bound to the password hash and last login of its user, so it dies once used.
type TokenGenerator struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

func NewTokenGenerator(conf *core.Config) *TokenGenerator {
	return &TokenGenerator{
		secret:  []byte(conf.SecretKey),
		timeout: conf.PasswordResetTimeoutDelta,
		now:     time.Now,
	}
}

// EncodeUID base64 encodes the ID of usr.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// Make generates a password reset token for usr.
func (g *TokenGenerator) Make(usr User) (string, error) {
	return g.makeWithTimestamp(usr, numDaysSince2001(g.now()))
}

// Verify checks that token is a valid, unexpired password reset token for usr.
func (g *TokenGenerator) Verify(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := tsEncoder.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// tampered?
	expected, err := g.makeWithTimestamp(usr, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return errInvalidToken
	}

	if numDaysSince2001(g.now())-ts > int(g.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func (g *TokenGenerator) makeWithTimestamp(usr User, ts int) (string, error) {
	sig, err := g.sign(hashValue(usr, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsEncoder.EncodeToString([]byte(strconv.Itoa(ts))), sig), nil
}

func (g *TokenGenerator) sign(val []byte) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), g.secret...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
