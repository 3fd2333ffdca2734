package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.user))
	for _, u := range repo.db.user {
		users = append(users, *u)
	}
	return users
}

// checkUniqueness must be called with the lock held.
func (repo *userRepository) checkUniqueness(email, nis, nip string, excludedIDs ...string) error {
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, usr := range repo.db.user {
		if excluded[usr.ID] {
			continue
		}
		switch {
		case email != "" && usr.Email == email:
			return user.ErrEmailExists
		case nis != "" && usr.NIS == nis:
			return user.ErrNISExists
		case nip != "" && usr.NIP == nip:
			return user.ErrNIPExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, email, nis, nip string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(email, nis, nip, excludedIDs...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Email, usr.NIS, usr.NIP); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.db.user[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) CreateUsers(_ context.Context, users []user.User) ([]user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, usr := range users {
		if err := repo.checkUniqueness(usr.Email, usr.NIS, usr.NIP); err != nil {
			return nil, err
		}
	}
	res := make([]user.User, 0, len(users))
	for _, usr := range users {
		usr := usr
		usr.ID = uuid.New().String()
		repo.db.user[usr.ID] = &usr
		res = append(res, usr)
	}
	return res, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.user[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByLogin(_ context.Context, login string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if login == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.user {
		if strings.EqualFold(usr.Email, login) || usr.NIS == login || usr.NIP == login {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByNIS(_ context.Context, nis string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.user {
		if nis != "" && usr.NIS == nis {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := repo.query()
	if filter != nil {
		filtered := make([]user.User, 0, len(users))
		for _, usr := range users {
			if matchUser(usr, filter) {
				filtered = append(filtered, usr)
			}
		}
		users = filtered
	}

	sortBy(users, ordering, func(a, b user.User, field string) (bool, bool) {
		switch field {
		case "name":
			return a.Name < b.Name, true
		case "email":
			return a.Email < b.Email, true
		case "nis":
			return a.NIS < b.NIS, true
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt), true
		case "last_login":
			return a.LastLogin.Before(b.LastLogin), true
		}
		return false, false
	})
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" &&
		!(containsFold(usr.Name, filter.Search) || containsFold(usr.Email, filter.Search) ||
			containsFold(usr.NIS, filter.Search) || containsFold(usr.NIP, filter.Search)) {
		return false
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if usr.Role == role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.JurusanID != "" && usr.JurusanID != filter.JurusanID {
		return false
	}
	if filter.KelasID != "" && usr.KelasID != filter.KelasID {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if filter.Claimed != nil && usr.Claimed != *filter.Claimed {
		return false
	}
	return true
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.user[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Email, usr.NIS, usr.NIP, usr.ID); err != nil {
		return user.User{}, err
	}
	repo.db.user[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) ClaimUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.user[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if orig.Claimed {
		return user.User{}, user.ErrAlreadyClaimed
	}
	if err := repo.checkUniqueness(usr.Email, "", "", usr.ID); err != nil {
		return user.User{}, err
	}
	orig.Email = usr.Email
	orig.PasswordHash = usr.PasswordHash
	orig.Claimed = true
	orig.UpdatedAt = usr.UpdatedAt
	return *orig, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		deleted[id] = true
	}
	for _, pn := range repo.db.penilaian {
		if deleted[pn.GuruID] {
			return user.ErrHasPenilaian
		}
	}

	for id, p := range repo.db.proyek {
		if !deleted[p.UserID] {
			continue
		}
		for pnID, pn := range repo.db.penilaian {
			if pn.ProyekID == id {
				delete(repo.db.penilaian, pnID)
			}
		}
		delete(repo.db.proyek, id)
	}
	for id := range deleted {
		delete(repo.db.user, id)
	}
	return nil
}
