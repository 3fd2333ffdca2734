package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/smkgaleri/galeri/core"
)

// PasswordMinLen is shared with the client so both sides gate on the same length.
const PasswordMinLen = 8

var (
	validRoleTag  = "validrole"
	validRoleText = "invalid role"

	roleFieldsTag  = "rolefields"
	roleFieldsText = "{0} is required for this role"

	// password policy
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", PasswordMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name, email or NIS"
)

// InitValidators registers the user validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(validRoleTag, validRoleValidation)
	core.RegisterCustomTranslation(validate, translator, validRoleTag, validRoleText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, Registration{}, ClaimAccount{}, UpdateUser{}, ResetPassword{})
	_ = validate.RegisterTranslation(
		roleFieldsTag, translator,
		func(t ut.Translator) error { return t.Add(roleFieldsTag, roleFieldsText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(roleFieldsTag, fe.Field())
			return s
		},
	)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// Custom Validators

func validRoleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).IsValid()
}

// userStructValidation does struct level validation on the user payloads.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateRoleFields(usr, sl)
		validatePassword(usr.Password, sl, usr.Name, usr.Email, usr.NIS, usr.NIP)
	case Registration:
		validatePassword(usr.Password, sl, usr.Name, usr.Email, usr.NIS)
	case ClaimAccount:
		validatePassword(usr.Password, sl, usr.Email, usr.NIS)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Name, usr.Email)
		}
	case ResetPassword:
		validatePassword(usr.Password, sl)
	}
}

// validateRoleFields checks the association fields every role needs:
// siswa need a NIS and a kelas, guru need a NIP and a jurusan.
func validateRoleFields(nu NewUser, sl validator.StructLevel) {
	switch nu.Role {
	case RoleSiswa:
		if nu.NIS == "" {
			sl.ReportError(nu.NIS, "nis", "NIS", roleFieldsTag, "")
		}
		if nu.KelasID == "" {
			sl.ReportError(nu.KelasID, "kelas_id", "KelasID", roleFieldsTag, "")
		}
	case RoleGuru:
		if nu.NIP == "" {
			sl.ReportError(nu.NIP, "nip", "NIP", roleFieldsTag, "")
		}
		if nu.JurusanID == "" {
			sl.ReportError(nu.JurusanID, "jurusan_id", "JurusanID", roleFieldsTag, "")
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - not all numeric
// - no user attrs similarity
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	if pwd == "" {
		return // reported by `required`
	}
	if len([]rune(pwd)) < PasswordMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len([]rune(pwd)) {
		reportErr(pwdNotAllNumTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if passwordSimilarity(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}

func passwordSimilarity(pwd, attr string) float64 {
	if attr == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).QuickRatio()
}
