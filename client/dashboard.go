package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

// Dashboard is the landing page of a role. The set of dashboards is closed:
// a new role needs a new method on DashboardVisitor.
type Dashboard interface {
	Accept(v DashboardVisitor)
	Owner() user.User
	sealed()
}

type DashboardVisitor interface {
	VisitAdmin(d AdminDashboard)
	VisitGuru(d GuruDashboard)
	VisitSiswa(d SiswaDashboard)
}

// AdminDashboard shows the grading progress of every jurusan.
type AdminDashboard struct {
	User  user.User
	Stats []proyek.Stat
}

// GuruDashboard lists the ungraded proyek of the guru's jurusan.
type GuruDashboard struct {
	User    user.User
	ToGrade []proyek.Proyek
}

// SiswaDashboard lists the siswa's own proyek.
type SiswaDashboard struct {
	User    user.User
	Proyeks []proyek.Proyek
}

func (d AdminDashboard) Accept(v DashboardVisitor) { v.VisitAdmin(d) }
func (d GuruDashboard) Accept(v DashboardVisitor)  { v.VisitGuru(d) }
func (d SiswaDashboard) Accept(v DashboardVisitor) { v.VisitSiswa(d) }

func (d AdminDashboard) Owner() user.User { return d.User }
func (d GuruDashboard) Owner() user.User  { return d.User }
func (d SiswaDashboard) Owner() user.User { return d.User }

func (AdminDashboard) sealed() {}
func (GuruDashboard) sealed()  {}
func (SiswaDashboard) sealed() {}

// LoadDashboard loads the dashboard of the session user.
func (c *Client) LoadDashboard(ctx context.Context) (Dashboard, error) {
	usr := c.session.User()
	if usr.ID == "" {
		var err error
		if usr, err = c.Me(ctx); err != nil {
			return nil, err
		}
	}

	switch usr.Role {
	case user.RoleAdmin:
		stats, err := c.ProyekStats(ctx)
		if err != nil {
			return nil, &LoadError{Op: "proyek stats", Err: err}
		}
		return AdminDashboard{User: usr, Stats: stats}, nil
	case user.RoleGuru:
		proyeks, err := c.ListProyeks(ctx, ProyekQuery{JurusanID: usr.JurusanID, Status: proyek.StatusTerkirim, Ordering: "created_at"})
		if err != nil {
			return nil, &LoadError{Op: "proyek", Err: err}
		}
		return GuruDashboard{User: usr, ToGrade: proyeks}, nil
	case user.RoleSiswa:
		proyeks, err := c.ListProyeks(ctx, ProyekQuery{UserID: usr.ID})
		if err != nil {
			return nil, &LoadError{Op: "proyek", Err: err}
		}
		return SiswaDashboard{User: usr, Proyeks: proyeks}, nil
	}
	return nil, errors.Errorf("no dashboard for role %q", usr.Role)
}
