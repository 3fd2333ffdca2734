package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/smkgaleri/galeri/core"
)

type Role string

// Roles
const (
	RoleAdmin Role = "admin"
	RoleGuru  Role = "guru"  // teacher
	RoleSiswa Role = "siswa" // student
)

var (
	AllRoles = []Role{RoleAdmin, RoleGuru, RoleSiswa}

	Roles = []RoleInfo{
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Guru", Value: RoleGuru},
		{Name: "Siswa", Value: RoleSiswa},
	}
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleGuru, RoleSiswa:
		return true
	}
	return false
}

// CanGrade reports whether the role may ever grade a Proyek.
func (r Role) CanGrade() bool {
	return r == RoleAdmin || r == RoleGuru
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	NIS          string    `json:"nis,omitempty"` // siswa registration number
	NIP          string    `json:"nip,omitempty"` // guru registration number
	JurusanID    string    `json:"jurusan_id,omitempty"`
	KelasID      string    `json:"kelas_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	Claimed      bool      `json:"claimed"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
func (u *User) IsGuru() bool  { return u.Role == RoleGuru }
func (u *User) IsSiswa() bool { return u.Role == RoleSiswa }

// IsUnclaimed reports whether u is a pre-seeded siswa record without login credentials.
func (u *User) IsUnclaimed() bool {
	return u.IsSiswa() && !u.Claimed
}

// NewUser contains information needed by an admin to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Role            Role   `json:"role" validate:"required,validrole"`
	NIS             string `json:"nis" validate:"omitempty,regnum,max=32"`
	NIP             string `json:"nip" validate:"omitempty,regnum,max=32"`
	JurusanID       string `json:"jurusan_id" validate:"omitempty,uuid"`
	KelasID         string `json:"kelas_id" validate:"omitempty,uuid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.NIS = core.CleanString(nu.NIS)
	nu.NIP = core.CleanString(nu.NIP)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email, nu.NIS, nu.NIP)
}

// Registration is a siswa signing up on their own (no pre-seeded record).
type Registration struct {
	Name            string `json:"name" validate:"required,notblank,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	NIS             string `json:"nis" validate:"required,regnum,max=32"`
	KelasID         string `json:"kelas_id" validate:"required,uuid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func (r *Registration) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.NIS = core.CleanString(r.NIS)

	if err := validate.Struct(r); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, r.Email, r.NIS, "")
}

// ClaimAccount attaches login credentials to a pre-seeded siswa record found by NIS.
type ClaimAccount struct {
	NIS             string `json:"nis" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// Validate only checks the payload; lookups happen in Service.Claim so that the
// not-found and already-claimed outcomes keep their own error kinds.
func (ca *ClaimAccount) Validate(validate *validator.Validate) error {
	ca.NIS = core.CleanString(ca.NIS)
	ca.Email = core.CleanString(ca.Email, true /* lower */)
	return validate.Struct(ca)
}

// ResetPassword confirms a password reset with the uid and token mailed by Service.RequestPasswordReset.
type ResetPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.UID = core.CleanString(rp.UID)
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

// NewSiswa is one row of a bulk import of unclaimed students.
type NewSiswa struct {
	Name    string `json:"name" validate:"required,notblank,max=100"`
	NIS     string `json:"nis" validate:"required,regnum,max=32"`
	KelasID string `json:"kelas_id" validate:"required,uuid"`
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string `json:"name" validate:"omitempty,notblank,max=100"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	IsActive        *bool  `json:"is_active"`
	JurusanID       string `json:"jurusan_id" validate:"omitempty,uuid"`
	KelasID         string `json:"kelas_id" validate:"omitempty,uuid"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirmation" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc ServiceInterface) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email == origUsr.Email {
		return nil
	}
	return svc.CheckUniqueness(ctx, uu.Email, "", "", origUsr)
}

type QueryFilter struct {
	Search    string
	Roles     []Role
	JurusanID string
	KelasID   string
	IsActive  *bool
	Claimed   *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
