package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/user"
)

type ClaimStep int

const (
	StepIdentity ClaimStep = iota
	StepActivation
	StepDone
	// StepAlreadyClaimed is reached when the record was claimed by someone else; it cannot be submitted again.
	StepAlreadyClaimed
)

func (s ClaimStep) String() string {
	switch s {
	case StepIdentity:
		return "identity"
	case StepActivation:
		return "activation"
	case StepDone:
		return "done"
	case StepAlreadyClaimed:
		return "already_claimed"
	}
	return "unknown"
}

type ClaimFailureKind int

const (
	FailureValidation ClaimFailureKind = iota
	FailureAlreadyClaimed
	FailureNISNotFound
	FailureGeneric
)

// Messages shown in the claim banner.
const (
	MsgInvalidFields  = "Please fix the highlighted fields."
	MsgAlreadyClaimed = "This account has already been claimed. Please contact the admin if this is not you."
	MsgNISNotFound    = "NIS not found. Please check your kelas and name again."
	MsgClaimFailed    = "The account could not be activated, please try again."
)

// ClaimFailure is returned by ClaimWizard.Submit; AlreadyClaimed is terminal.
type ClaimFailure struct {
	Kind    ClaimFailureKind
	Message string
	Fields  map[string][]string
	Err     error
}

func (f *ClaimFailure) Error() string { return f.Message }
func (f *ClaimFailure) Unwrap() error { return f.Err }

// Identity is the first step: who the student is.
type Identity struct {
	DepartmentID string `json:"jurusan_id" validate:"required"`
	ClassID      string `json:"kelas_id" validate:"required"`
	StudentNIS   string `json:"nis" validate:"required"`
	StudentName  string `json:"name"`
}

// Activation is the second step: the credentials attached to the record.
type Activation struct {
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,pwdmin"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type ClaimResult struct {
	Token string
	User  user.User
}

const (
	pwdMinTag  = "pwdmin"
	mismatched = "passwords do not match"
)

// NewClaimValidator returns the validator shared by every ClaimWizard.
func NewClaimValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	_ = validate.RegisterValidation(pwdMinTag, func(fl validator.FieldLevel) bool {
		return len([]rune(fl.Field().String())) >= user.PasswordMinLen
	})
	core.RegisterCustomTranslation(validate, translator, pwdMinTag, "password must contain at least 8 characters")
	core.RegisterCustomTranslation(validate, translator, "eqfield", mismatched, true)
	return validate, translator
}

// ClaimWizard drives the claim of a pre-seeded siswa record.
// Changing a selection clears everything below it; responses for an outdated selection are dropped.
type ClaimWizard struct {
	resolver   *IdentityResolver
	c          *Client
	validate   *validator.Validate
	translator ut.Translator

	mutex      sync.Mutex
	step       ClaimStep
	identity   Identity
	activation Activation
	classes    []akademik.Kelas
	students   []user.User
	errs       map[string][]string
	banner     string
	generation uint64
	submitting atomic.Bool
}

func NewClaimWizard(c *Client, resolver *IdentityResolver, validate *validator.Validate, translator ut.Translator) *ClaimWizard {
	return &ClaimWizard{
		resolver:   resolver,
		c:          c,
		validate:   validate,
		translator: translator,
		errs:       make(map[string][]string),
	}
}

func (w *ClaimWizard) Step() ClaimStep {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.step
}

func (w *ClaimWizard) Identity() Identity {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.identity
}

func (w *ClaimWizard) ClassOptions() []akademik.Kelas {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return append([]akademik.Kelas(nil), w.classes...)
}

func (w *ClaimWizard) StudentOptions() []user.User {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return append([]user.User(nil), w.students...)
}

// Errors returns the field errors of the current step, keyed by JSON field name.
func (w *ClaimWizard) Errors() map[string][]string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	errs := make(map[string][]string, len(w.errs))
	for k, v := range w.errs {
		errs[k] = append([]string(nil), v...)
	}
	return errs
}

func (w *ClaimWizard) Banner() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.banner
}

// SelectDepartment selects a jurusan, clears the kelas and siswa selections and loads the kelas options.
func (w *ClaimWizard) SelectDepartment(ctx context.Context, departmentID string) ([]akademik.Kelas, error) {
	w.mutex.Lock()
	w.generation++
	gen := w.generation
	w.identity = Identity{DepartmentID: core.CleanString(departmentID)}
	w.classes, w.students = nil, nil
	delete(w.errs, "jurusan_id")
	w.reopenIdentity()
	id := w.identity.DepartmentID
	w.mutex.Unlock()

	classes, err := w.resolver.ListClasses(ctx, id)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if gen != w.generation {
		return nil, errStale
	}
	if err != nil {
		return nil, err
	}
	w.classes = classes
	return classes, nil
}

// SelectClass selects one of the loaded kelas options, clears the siswa selection and loads the siswa options.
func (w *ClaimWizard) SelectClass(ctx context.Context, classID string) ([]user.User, error) {
	classID = core.CleanString(classID)

	w.mutex.Lock()
	if classID != "" && !w.hasClass(classID) {
		w.mutex.Unlock()
		return nil, validationError(map[string][]string{"kelas_id": {"kelas does not belong to the selected jurusan"}})
	}
	w.generation++
	gen := w.generation
	w.identity.ClassID = classID
	w.identity.StudentNIS, w.identity.StudentName = "", ""
	w.students = nil
	delete(w.errs, "kelas_id")
	w.reopenIdentity()
	w.mutex.Unlock()

	students, err := w.resolver.ListUnclaimedStudents(ctx, classID)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if gen != w.generation {
		return nil, errStale
	}
	if err != nil {
		return nil, err
	}
	w.students = students
	return students, nil
}

// SelectStudent picks one of the loaded siswa options by NIS.
func (w *ClaimWizard) SelectStudent(nis string) error {
	nis = core.CleanString(nis)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if nis == "" {
		w.identity.StudentNIS, w.identity.StudentName = "", ""
		w.reopenIdentity()
		return nil
	}
	for _, s := range w.students {
		if s.NIS == nis {
			if nis != w.identity.StudentNIS {
				w.reopenIdentity()
			}
			w.identity.StudentNIS, w.identity.StudentName = s.NIS, s.Name
			delete(w.errs, "nis")
			return nil
		}
	}
	return validationError(map[string][]string{"nis": {"siswa is not in the selected kelas"}})
}

// hasClass must be called with the lock held.
func (w *ClaimWizard) hasClass(classID string) bool {
	for _, k := range w.classes {
		if k.ID == classID && k.JurusanID == w.identity.DepartmentID {
			return true
		}
	}
	return false
}

// reopenIdentity sends the wizard back to the identity step after an identity change.
// Must be called with the lock held.
func (w *ClaimWizard) reopenIdentity() {
	if w.step == StepActivation || w.step == StepAlreadyClaimed {
		w.step = StepIdentity
		w.banner = ""
	}
}

// Next validates the identity step and moves to activation.
func (w *ClaimWizard) Next() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.step != StepIdentity {
		return nil
	}
	if fields := w.fieldErrors(w.identity); fields != nil {
		w.errs, w.banner = fields, MsgInvalidFields
		return validationError(fields)
	}
	w.errs, w.banner = make(map[string][]string), ""
	w.step = StepActivation
	return nil
}

// Back returns to the identity step; nothing entered is lost.
func (w *ClaimWizard) Back() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.step == StepActivation {
		w.step = StepIdentity
		w.errs, w.banner = make(map[string][]string), ""
	}
}

func (w *ClaimWizard) SetActivation(a Activation) {
	w.mutex.Lock()
	w.activation = Activation{
		Email:                core.CleanString(a.Email, true /* lower */),
		Password:             a.Password,
		PasswordConfirmation: a.PasswordConfirmation,
	}
	w.mutex.Unlock()
}

// fieldErrors must be called with the lock held.
func (w *ClaimWizard) fieldErrors(s interface{}) map[string][]string {
	err := w.validate.Struct(s)
	if err == nil {
		return nil
	}
	fields, ok := core.FieldErrors(err, w.translator)
	if !ok {
		return map[string][]string{"": {err.Error()}}
	}
	return fields
}

// Submit claims the selected record with the activation credentials.
// Invalid input is rejected without a request; the caller persists the returned session.
func (w *ClaimWizard) Submit(ctx context.Context) (ClaimResult, error) {
	if !w.submitting.CompareAndSwap(false, true) {
		return ClaimResult{}, ErrSubmitInFlight
	}
	defer w.submitting.Store(false)

	w.mutex.Lock()
	if w.step == StepAlreadyClaimed {
		w.mutex.Unlock()
		return ClaimResult{}, &ClaimFailure{Kind: FailureAlreadyClaimed, Message: MsgAlreadyClaimed}
	}
	if w.step != StepActivation {
		w.mutex.Unlock()
		return ClaimResult{}, &ClaimFailure{Kind: FailureValidation, Message: MsgInvalidFields}
	}
	if fields := w.fieldErrors(w.identity); fields != nil {
		w.step = StepIdentity
		w.errs, w.banner = fields, MsgInvalidFields
		w.mutex.Unlock()
		return ClaimResult{}, &ClaimFailure{Kind: FailureValidation, Message: MsgInvalidFields, Fields: fields}
	}
	if fields := w.fieldErrors(w.activation); fields != nil {
		w.errs, w.banner = fields, MsgInvalidFields
		w.mutex.Unlock()
		return ClaimResult{}, &ClaimFailure{Kind: FailureValidation, Message: MsgInvalidFields, Fields: fields}
	}
	body := map[string]string{
		"nis":                   w.identity.StudentNIS,
		"email":                 w.activation.Email,
		"password":              w.activation.Password,
		"password_confirmation": w.activation.PasswordConfirmation,
	}
	w.mutex.Unlock()

	var env authEnvelope
	err := w.c.do(ctx, http.MethodPost, "/auth/claim", nil, body, &env)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if err != nil {
		failure := claimFailure(err)
		w.banner = failure.Message
		w.errs = make(map[string][]string)
		for field, msgs := range failure.Fields {
			w.errs[field] = msgs
		}
		if failure.Kind == FailureAlreadyClaimed {
			w.step = StepAlreadyClaimed
		}
		return ClaimResult{}, failure
	}

	w.c.cache.invalidate("/siswa/available")
	w.step = StepDone
	w.errs, w.banner = make(map[string][]string), ""
	w.activation = Activation{}
	return ClaimResult{Token: env.Token, User: env.User}, nil
}

func claimFailure(err error) *ClaimFailure {
	apiErr, ok := err.(*APIError)
	if !ok {
		return &ClaimFailure{Kind: FailureGeneric, Message: MsgClaimFailed, Err: err}
	}
	switch apiErr.Status {
	case http.StatusForbidden:
		return &ClaimFailure{Kind: FailureAlreadyClaimed, Message: MsgAlreadyClaimed, Err: err}
	case http.StatusUnprocessableEntity:
		return &ClaimFailure{Kind: FailureValidation, Message: MsgInvalidFields, Fields: apiErr.Fields, Err: err}
	case http.StatusNotFound:
		return &ClaimFailure{Kind: FailureNISNotFound, Message: MsgNISNotFound, Err: err}
	}
	return &ClaimFailure{Kind: FailureGeneric, Message: MsgClaimFailed, Err: err}
}
