package user

import (
	"testing"
	"time"

	"github.com/smkgaleri/galeri/core"
)

func TestTokenGenerator(t *testing.T) {
	conf := core.NewTestConfig()
	gen := NewTokenGenerator(conf)

	now := time.Now()
	usr := User{
		ID:        "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11",
		Name:      "Rina",
		Email:     "rina@smk.sch.id",
		Role:      RoleSiswa,
		IsActive:  true,
		Claimed:   true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("Galeri#2024")

	validToken, err := gen.Make(usr)
	if err != nil {
		t.Fatalf("Make() failed: %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	gen.now = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := gen.Make(usr)
	if err != nil {
		t.Fatalf("Make() failed: %v", err)
	}
	gen.now = time.Now

	// a password change invalidates the token
	changed := usr
	_ = changed.SetPassword("Galeri#2025")

	otherKey := NewTokenGenerator(&core.Config{SecretKey: "other", PasswordResetTimeoutDelta: conf.PasswordResetTimeoutDelta})

	tests := []struct {
		name    string
		gen     *TokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", gen: gen, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", gen: gen, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", gen: gen, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid signature", gen: gen, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", gen: gen, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", gen: gen, usr: changed, token: validToken, wantErr: errInvalidToken},
		{name: "other secret", gen: otherKey, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", gen: gen, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.Verify(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeUID(t *testing.T) {
	usr := User{ID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil || id != usr.ID {
		t.Errorf("decodeUID(EncodeUID()) = %q, %v; want %q", id, err, usr.ID)
	}
	if _, err = decodeUID("not base64!"); err == nil {
		t.Error("decodeUID() accepted an invalid uid")
	}
}
