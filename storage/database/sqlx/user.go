package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

const userColumns = `id, name, email, role, nis, nip, jurusan_id, kelas_id, is_active, claimed, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

const graderForeignKey = "penilaian_guru_id_fkey"

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	NIS          null.String `db:"nis"`
	NIP          null.String `db:"nip"`
	JurusanID    null.String `db:"jurusan_id"`
	KelasID      null.String `db:"kelas_id"`
	IsActive     bool        `db:"is_active"`
	Claimed      bool        `db:"claimed"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         string(usr.Role),
		NIS:          null.NewString(usr.NIS, usr.NIS != ""),
		NIP:          null.NewString(usr.NIP, usr.NIP != ""),
		JurusanID:    null.NewString(usr.JurusanID, usr.JurusanID != ""),
		KelasID:      null.NewString(usr.KelasID, usr.KelasID != ""),
		IsActive:     usr.IsActive,
		Claimed:      usr.Claimed,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email.String,
		Role:         user.Role(r.Role),
		NIS:          r.NIS.String,
		NIP:          r.NIP.String,
		JurusanID:    r.JurusanID.String,
		KelasID:      r.KelasID.String,
		IsActive:     r.IsActive,
		Claimed:      r.Claimed,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.Time.UTC(),
		UpdatedAt:    r.UpdatedAt.Time.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

// trapUniqueErr maps a unique violation on users to its sentinel error.
func trapUniqueErr(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch {
		case strings.Contains(constraint, "email"):
			return user.ErrEmailExists
		case strings.Contains(constraint, "nis"):
			return user.ErrNISExists
		case strings.Contains(constraint, "nip"):
			return user.ErrNIPExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, email, nis, nip string, excludedIDs ...string) error {
	checks := []struct {
		col, val string
		err      error
	}{
		{"email", email, user.ErrEmailExists},
		{"nis", nis, user.ErrNISExists},
		{"nip", nip, user.ErrNIPExists},
	}

	for _, chk := range checks {
		if chk.val == "" {
			continue
		}
		q := `SELECT EXISTS (SELECT 1 FROM users WHERE ` + chk.col + ` = ?`
		args := []interface{}{chk.val}
		if len(excludedIDs) > 0 {
			q += ` AND id NOT IN (?)`
			args = append(args, excludedIDs)
		}
		q += `)`

		query, qArgs, err := sqlx.In(q, args...)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		var found bool
		if err = repo.db.GetContext(ctx, &found, repo.db.Rebind(query), qArgs...); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if found {
			return chk.err
		}
	}
	return nil
}

const insertUser = `INSERT INTO users (` + userColumns + `) VALUES (
	:id, :name, :email, :role, :nis, :nip, :jurusan_id, :kelas_id, :is_active, :claimed, :password_hash,
	:created_at, :updated_at, :last_login)`

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	if _, err := repo.db.NamedExecContext(ctx, insertUser, toUserRow(usr)); err != nil {
		return user.User{}, trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) CreateUsers(ctx context.Context, users []user.User) ([]user.User, error) {
	res := make([]user.User, 0, len(users))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, usr := range users {
			usr.ID = uuid.New().String()
			if _, err := tx.NamedExecContext(ctx, insertUser, toUserRow(usr)); err != nil {
				return trapUniqueErr(err, "inserting users")
			}
			res = append(res, usr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByLogin(ctx context.Context, login string) (user.User, error) {
	if login == "" {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) OR nis = $1 OR nip = $1 LIMIT 1`, login)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by login")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByNIS(ctx context.Context, nis string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE nis = $1`, nis); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by NIS")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// users with Name, Email, NIS or NIP matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, `(name ILIKE ? OR email ILIKE ? OR nis ILIKE ? OR nip ILIKE ?)`)
			args = append(args, val, val, val, val)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roles = append(roles, string(role))
			}
			where = append(where, `role IN (?)`)
			args = append(args, roles)
		}
		if filter.JurusanID != "" {
			where = append(where, `jurusan_id = ?`)
			args = append(args, filter.JurusanID)
		}
		if filter.KelasID != "" {
			where = append(where, `kelas_id = ?`)
			args = append(args, filter.KelasID)
		}
		if filter.IsActive != nil {
			where = append(where, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
		if filter.Claimed != nil {
			where = append(where, `claimed = ?`)
			args = append(args, *filter.Claimed)
		}
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += orderBy(ordering, "")

	query, qArgs, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), qArgs...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE users SET
		name = :name, email = :email, nis = :nis, nip = :nip, jurusan_id = :jurusan_id, kelas_id = :kelas_id,
		is_active = :is_active, claimed = :claimed, password_hash = :password_hash,
		updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, toUserRow(usr))
	if err != nil {
		return user.User{}, trapUniqueErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) ClaimUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE users SET
		email = :email, password_hash = :password_hash, claimed = TRUE, updated_at = :updated_at
		WHERE id = :id AND claimed = FALSE`, toUserRow(usr))
	if err != nil {
		return user.User{}, trapUniqueErr(err, "claiming user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return user.User{}, errors.Wrap(err, "claiming user")
	}
	if n == 0 {
		return user.User{}, user.ErrAlreadyClaimed
	}
	usr.Claimed = true
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	// proyeks (and their penilaian) cascade; graders are restricted
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		if constraint, ok := foreignKeyConstraint(err); ok && constraint == graderForeignKey {
			return user.ErrHasPenilaian
		}
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
