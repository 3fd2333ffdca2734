package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/user"
)

// IdentityResolver lists the jurusan, kelas and unclaimed siswa a student picks from when claiming an account.
type IdentityResolver struct {
	c *Client
	// prerender degrades failed loads to empty lists.
	prerender bool
}

func NewIdentityResolver(c *Client) *IdentityResolver {
	return &IdentityResolver{c: c}
}

// Prerender returns a resolver for non-interactive rendering: loads never fail, they come back empty.
func (r *IdentityResolver) Prerender() *IdentityResolver {
	return &IdentityResolver{c: r.c, prerender: true}
}

func load[T any](ctx context.Context, r *IdentityResolver, op, path string, query url.Values) ([]T, error) {
	items, err := getCached[[]T](ctx, r.c, path, query)
	if err != nil {
		if r.prerender {
			if r.c.logger != nil {
				r.c.logger.Warn(fmt.Sprintf("prerender: loading %s: %v", op, err))
			}
			return []T{}, nil
		}
		return nil, &LoadError{Op: op, Err: err}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (r *IdentityResolver) ListDepartments(ctx context.Context) ([]akademik.Jurusan, error) {
	return load[akademik.Jurusan](ctx, r, "jurusan", "/jurusans", nil)
}

// ListClasses returns the kelas of a jurusan; an empty id returns an empty list without a request.
func (r *IdentityResolver) ListClasses(ctx context.Context, departmentID string) ([]akademik.Kelas, error) {
	if departmentID = core.CleanString(departmentID); departmentID == "" {
		return []akademik.Kelas{}, nil
	}
	return load[akademik.Kelas](ctx, r, "kelas", "/kelas/by-jurusan", url.Values{"jurusan_id": {departmentID}})
}

// ListUnclaimedStudents returns the siswa of a kelas that can still be claimed; an empty id returns an empty list without a request.
func (r *IdentityResolver) ListUnclaimedStudents(ctx context.Context, classID string) ([]user.User, error) {
	if classID = core.CleanString(classID); classID == "" {
		return []user.User{}, nil
	}
	return load[user.User](ctx, r, "siswa", "/siswa/available", url.Values{"kelas_id": {classID}})
}
