package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/user"
)

// NewGrading is the body of POST /penilaians.
type NewGrading struct {
	ProyekID string `json:"proyek_id"`
	Bintang  int    `json:"bintang"`
	Catatan  string `json:"catatan,omitempty"`
}

// GradingUpdate is the body of PUT /penilaians/:id; nil fields are left untouched.
type GradingUpdate struct {
	Bintang *int    `json:"bintang,omitempty"`
	Catatan *string `json:"catatan,omitempty"`
}

func checkBintang(b int) error {
	if penilaian.ValidBintang(b) {
		return nil
	}
	return validationError(map[string][]string{
		"bintang": {fmt.Sprintf("bintang must be between %d and %d", penilaian.MinBintang, penilaian.MaxBintang)},
	})
}

// Decision is a permission together with what the actor can do with it.
type Decision struct {
	Permission penilaian.Permission
	Action     penilaian.Action
}

func (d Decision) ShowsForm() bool { return d.Action.ShowsForm() }

// Notice is the text shown above the grading form, if any.
func (d Decision) Notice() string {
	switch d.Action {
	case penilaian.ActionBlockedCrossJurusan:
		return "You can only grade projects of your own jurusan."
	case penilaian.ActionOverride:
		grader := "another grader"
		if d.Permission.ExistingGrader != nil && *d.Permission.ExistingGrader != "" {
			grader = *d.Permission.ExistingGrader
		}
		return fmt.Sprintf("This project was already graded by %s. Submitting replaces that penilaian.", grader)
	case penilaian.ActionReadOnly:
		if d.Permission.ExistingGrader != nil {
			return fmt.Sprintf("Graded by %s.", *d.Permission.ExistingGrader)
		}
	}
	return ""
}

// SubmitLabel is the caption of the submit button of the form.
func (d Decision) SubmitLabel() string {
	switch d.Action {
	case penilaian.ActionGrade:
		return "Simpan Penilaian"
	case penilaian.ActionEdit:
		return "Update Penilaian"
	case penilaian.ActionOverride:
		return "Override Penilaian"
	}
	return ""
}

// GradingEngine asks the API what an actor may do about a proyek and performs grading mutations.
// Permissions are never cached: the server re-checks every mutation anyway.
type GradingEngine struct {
	c *Client
}

func NewGradingEngine(c *Client) *GradingEngine {
	return &GradingEngine{c: c}
}

func (e *GradingEngine) CheckPermission(ctx context.Context, proyekID string) (penilaian.Permission, error) {
	body := penilaian.CheckPermissionRequest{ProyekID: core.CleanString(proyekID)}
	return send[penilaian.Permission](ctx, e.c, http.MethodPost, "/penilaians/check-permission", body)
}

// Decide fetches the permission of actor and applies the decision table to it.
func (e *GradingEngine) Decide(ctx context.Context, actor user.User, proyekID string) (Decision, error) {
	if !actor.Role.CanGrade() {
		return Decision{Action: penilaian.ActionNone}, nil
	}
	perm, err := e.CheckPermission(ctx, proyekID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Permission: perm, Action: penilaian.Decide(penilaian.ActorOf(actor), perm)}, nil
}

// CreateGrading grades a proyek, or overrides its grade when the actor is an admin.
func (e *GradingEngine) CreateGrading(ctx context.Context, ng NewGrading) (penilaian.Penilaian, error) {
	if err := checkBintang(ng.Bintang); err != nil {
		return penilaian.Penilaian{}, err
	}
	pn, err := send[penilaian.Penilaian](ctx, e.c, http.MethodPost, "/penilaians", ng)
	if err != nil {
		return penilaian.Penilaian{}, err
	}
	e.invalidate()
	return pn, nil
}

// UpdateGrading edits a penilaian; only its original grader may do so.
func (e *GradingEngine) UpdateGrading(ctx context.Context, penilaianID string, gu GradingUpdate) (penilaian.Penilaian, error) {
	if gu.Bintang != nil {
		if err := checkBintang(*gu.Bintang); err != nil {
			return penilaian.Penilaian{}, err
		}
	}
	pn, err := send[penilaian.Penilaian](ctx, e.c, http.MethodPut, "/penilaians/"+url.PathEscape(penilaianID), gu)
	if err != nil {
		return penilaian.Penilaian{}, err
	}
	e.invalidate()
	return pn, nil
}

// invalidate drops every cached proyek read: status, lists and stats all change with a grade.
func (e *GradingEngine) invalidate() {
	e.c.cache.invalidate("/proyeks")
}

// GradingFlow is the grading form of one proyek as seen by one actor.
type GradingFlow struct {
	engine   *GradingEngine
	actor    user.User
	proyekID string

	mutex      sync.RWMutex
	decision   Decision
	submitting atomic.Bool
}

func (e *GradingEngine) Flow(ctx context.Context, actor user.User, proyekID string) (*GradingFlow, error) {
	f := &GradingFlow{engine: e, actor: actor, proyekID: proyekID}
	if err := f.Refresh(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *GradingFlow) Decision() Decision {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.decision
}

// Refresh re-fetches the permission from the API.
func (f *GradingFlow) Refresh(ctx context.Context) error {
	d, err := f.engine.Decide(ctx, f.actor, f.proyekID)
	if err != nil {
		return err
	}
	f.mutex.Lock()
	f.decision = d
	f.mutex.Unlock()
	return nil
}

// Submit sends the form: a PUT when editing one's own penilaian, a POST when grading or overriding.
// On success the permission is re-fetched before returning.
func (f *GradingFlow) Submit(ctx context.Context, bintang int, catatan string) (penilaian.Penilaian, error) {
	if err := checkBintang(bintang); err != nil {
		return penilaian.Penilaian{}, err
	}
	if !f.submitting.CompareAndSwap(false, true) {
		return penilaian.Penilaian{}, ErrSubmitInFlight
	}
	defer f.submitting.Store(false)

	d := f.Decision()
	var (
		pn  penilaian.Penilaian
		err error
	)
	switch d.Action {
	case penilaian.ActionEdit:
		pn, err = f.engine.UpdateGrading(ctx, d.Permission.PenilaianID, GradingUpdate{Bintang: &bintang, Catatan: &catatan})
	case penilaian.ActionGrade, penilaian.ActionOverride:
		pn, err = f.engine.CreateGrading(ctx, NewGrading{ProyekID: f.proyekID, Bintang: bintang, Catatan: catatan})
	default:
		return penilaian.Penilaian{}, ErrNoGradingAction
	}
	if err != nil {
		return penilaian.Penilaian{}, err
	}
	if err = f.Refresh(ctx); err != nil {
		return pn, err
	}
	return pn, nil
}
