package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrNISExists          = errors.New("a user with this NIS already exists")
	ErrNIPExists          = errors.New("a user with this NIP already exists")
	ErrNISNotFound        = errors.New("no student found with this NIS")
	ErrAlreadyClaimed     = errors.New("this account has already been claimed, please contact an admin")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrInvalidResetLink   = errors.New("invalid or expired password reset link")
	ErrHasPenilaian       = errors.New("this user has graded proyeks and cannot be deleted, deactivate the account instead")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists, ErrNISExists or ErrNIPExists on the first clash.
		// Empty values are not checked.
		CheckUniqueness(ctx context.Context, email, nis, nip string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateUsers inserts all users or none.
		CreateUsers(ctx context.Context, users []User) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetUserByLogin matches the email, NIS or NIP.
		GetUserByLogin(ctx context.Context, login string) (User, error)
		GetUserByNIS(ctx context.Context, nis string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email, User.NIS or User.NIP.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// ClaimUser stores the credentials of usr only if the record is still unclaimed,
		// otherwise it returns ErrAlreadyClaimed.
		ClaimUser(ctx context.Context, usr User) (User, error)
		// DeleteUsersByID deletes the users with their proyeks, or none of them with ErrHasPenilaian
		// when one of them graded a proyek.
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, email, nis, nip string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, reg Registration) (User, error)
		Claim(ctx context.Context, ca ClaimAccount) (User, error)
		ImportSiswa(ctx context.Context, rows []NewSiswa) ([]User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		ListAvailableSiswa(ctx context.Context, kelasID string) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByLogin(ctx context.Context, login string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, login, pwd string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetPassword) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo      Repository
		kelasRepo akademik.Repository
		mailSvc   core.EmailService
		tokens    *TokenGenerator
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, kelasRepo akademik.Repository, mailSvc core.EmailService, tokens *TokenGenerator) ServiceInterface {
	return &service{repo: repo, kelasRepo: kelasRepo, mailSvc: mailSvc, tokens: tokens}
}

func (svc *service) CheckUniqueness(ctx context.Context, email, nis, nip string, exclUsers ...User) error {
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	if err := svc.repo.CheckUniqueness(ctx, email, nis, nip, ids...); err != nil {
		var field string
		switch err {
		case ErrEmailExists:
			field = "email"
		case ErrNISExists:
			field = "nis"
		case ErrNIPExists:
			field = "nip"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// kelasJurusan resolves the jurusan of a kelas, reporting an unknown kelas on the kelas_id field.
func (svc *service) kelasJurusan(ctx context.Context, kelasID string) (string, error) {
	kls, err := svc.kelasRepo.GetKelasByID(ctx, kelasID)
	if err != nil {
		if err == akademik.ErrKelasNotFound {
			return "", core.NewValidationError(err, core.FieldError{Field: "kelas_id", Error: err.Error()})
		}
		return "", pkgerrors.Wrap(err, "finding kelas")
	}
	return kls.JurusanID, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		Claimed:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch nu.Role {
	case RoleSiswa:
		jurusanID, err := svc.kelasJurusan(ctx, nu.KelasID)
		if err != nil {
			return User{}, err
		}
		usr.NIS, usr.KelasID, usr.JurusanID = nu.NIS, nu.KelasID, jurusanID
	case RoleGuru:
		if _, err := svc.kelasRepo.GetJurusanByID(ctx, nu.JurusanID); err != nil {
			if err == akademik.ErrJurusanNotFound {
				return User{}, core.NewValidationError(err, core.FieldError{Field: "jurusan_id", Error: err.Error()})
			}
			return User{}, pkgerrors.Wrap(err, "finding jurusan")
		}
		usr.NIP, usr.JurusanID = nu.NIP, nu.JurusanID
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Register(ctx context.Context, reg Registration) (User, error) {
	jurusanID, err := svc.kelasJurusan(ctx, reg.KelasID)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	usr := User{
		Name:      reg.Name,
		Email:     reg.Email,
		Role:      RoleSiswa,
		NIS:       reg.NIS,
		KelasID:   reg.KelasID,
		JurusanID: jurusanID,
		IsActive:  true,
		Claimed:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(reg.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Claim turns a pre-seeded siswa record into a login-capable account.
// Outcomes: ErrNISNotFound, ErrAlreadyClaimed, ErrAccountDeactivated or a *core.ValidationError on email.
func (svc *service) Claim(ctx context.Context, ca ClaimAccount) (User, error) {
	usr, err := svc.repo.GetUserByNIS(ctx, ca.NIS)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrNISNotFound
		}
		return User{}, pkgerrors.Wrap(err, "finding user by NIS")
	}
	if !usr.IsSiswa() {
		return User{}, ErrNISNotFound
	}
	if usr.Claimed {
		return User{}, ErrAlreadyClaimed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	if err = svc.CheckUniqueness(ctx, ca.Email, "", "", usr); err != nil {
		return User{}, err
	}

	usr.Email = ca.Email
	usr.Claimed = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(ca.Password); err != nil {
		return User{}, err
	}
	usr, err = svc.repo.ClaimUser(ctx, usr)
	switch err {
	case nil:
	case ErrAlreadyClaimed:
		return User{}, err
	case ErrEmailExists:
		return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
	default:
		return User{}, pkgerrors.Wrap(err, "claiming user")
	}

	svc.sendClaimedMail(usr)
	return usr, nil
}

func (svc *service) sendClaimedMail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Akun kamu sudah aktif",
		TemplateName: "account_claimed",
		TemplateData: usr,
	})
}

// ImportSiswa bulk-creates unclaimed siswa records; either every row is imported or none.
func (svc *service) ImportSiswa(ctx context.Context, rows []NewSiswa) ([]User, error) {
	now := time.Now().UTC()
	users := make([]User, 0, len(rows))
	seen := make(map[string]int, len(rows))
	jurusanByKelas := make(map[string]string)

	for i, row := range rows {
		row.Name = core.CleanString(row.Name)
		row.NIS = core.CleanString(row.NIS)
		line := fmt.Sprintf("row %d", i+1)

		if prev, ok := seen[row.NIS]; ok {
			return nil, core.NewValidationError(ErrNISExists, core.FieldError{
				Field: line, Error: fmt.Sprintf("duplicate NIS %s (first seen on row %d)", row.NIS, prev),
			})
		}
		seen[row.NIS] = i + 1

		jurusanID, ok := jurusanByKelas[row.KelasID]
		if !ok {
			var err error
			if jurusanID, err = svc.kelasJurusan(ctx, row.KelasID); err != nil {
				if vErr, isVErr := err.(*core.ValidationError); isVErr {
					return nil, core.NewValidationError(vErr.Err, core.FieldError{Field: line, Error: vErr.Err.Error()})
				}
				return nil, err
			}
			jurusanByKelas[row.KelasID] = jurusanID
		}
		if err := svc.repo.CheckUniqueness(ctx, "", row.NIS, ""); err != nil {
			if err == ErrNISExists {
				return nil, core.NewValidationError(ErrNISExists, core.FieldError{Field: line, Error: ErrNISExists.Error()})
			}
			return nil, pkgerrors.Wrapf(err, "checking NIS on %s", line)
		}

		users = append(users, User{
			Name:      row.Name,
			Role:      RoleSiswa,
			NIS:       row.NIS,
			KelasID:   row.KelasID,
			JurusanID: jurusanID,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return svc.repo.CreateUsers(ctx, users)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

// ListAvailableSiswa returns the active, unclaimed students of a class; an empty id yields an empty list.
func (svc *service) ListAvailableSiswa(ctx context.Context, kelasID string) ([]User, error) {
	kelasID = core.CleanString(kelasID)
	if kelasID == "" {
		return []User{}, nil
	}
	active, claimed := true, false
	return svc.repo.QueryUsers(ctx, &QueryFilter{
		Roles:    []Role{RoleSiswa},
		KelasID:  kelasID,
		IsActive: &active,
		Claimed:  &claimed,
	}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByLogin(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUserByLogin(ctx, core.CleanString(login, true /* lower */))
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.JurusanID != "" && usr.IsGuru() {
		usr.JurusanID = uu.JurusanID
	}
	if uu.KelasID != "" && usr.IsSiswa() {
		jurusanID, err := svc.kelasJurusan(ctx, uu.KelasID)
		if err != nil {
			return User{}, err
		}
		usr.KelasID, usr.JurusanID = uu.KelasID, jurusanID
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword is used by the admin command line; it bypasses the password policy.
func (svc *service) SetPassword(ctx context.Context, login, pwd string) error {
	usr, err := svc.GetByLogin(ctx, login)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// RequestPasswordReset mails a reset link to the account behind email.
// Unknown, unclaimed and deactivated accounts yield ErrNotFound.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	usr, err := svc.repo.GetUserByLogin(ctx, email)
	if err != nil {
		return err
	}
	if !strings.EqualFold(usr.Email, email) || !usr.IsActive || usr.IsUnclaimed() {
		return ErrNotFound
	}

	token, err := svc.tokens.Make(usr)
	if err != nil {
		return pkgerrors.Wrap(err, "making password reset token")
	}
	svc.sendPasswordResetMail(usr, EncodeUID(usr), token)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User, uid, token string) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Atur ulang kata sandi",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": usr.Name, "UID": uid, "Token": token},
	})
}

// ResetPassword sets a new password once the mailed uid and token check out.
// A bad link is reported as a *core.ValidationError on the uid or token field.
func (svc *service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	invalid := func(field string) error {
		return core.NewValidationError(ErrInvalidResetLink, core.FieldError{Field: field, Error: "invalid value"})
	}

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid("uid")
	}
	if _, err = uuid.Parse(id); err != nil {
		return invalid("uid")
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return invalid("uid")
		}
		return pkgerrors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive || usr.IsUnclaimed() {
		return invalid("uid")
	}
	if err = svc.tokens.Verify(usr, rp.Token); err != nil {
		return invalid("token")
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
