package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-connect/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func copyUser(u user.User) user.User {
	if u.Roles != nil {
		u.Roles = append([]string{}, u.Roles...)
	}
	if u.IsActive != nil {
		u.SetActive(*u.IsActive)
	}
	return u
}

func (repo *userRepository) CheckUserUniqueness(_ context.Context, username, email, phone string, excludedUsers []user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make([]user.User, len(excludedUsers))
	copy(excluded, excludedUsers)
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })

	for _, usr := range repo.db.table {
		if isExcluded(*usr, excluded) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
		if phone != "" && usr.Phone == phone {
			return user.ErrPhoneExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUserUniqueness(ctx, usr.Username, usr.Email, usr.Phone, nil); err != nil {
		return user.User{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	usr = copyUser(usr)
	usr.ID = uuid.New().String()
	if usr.IsActive == nil {
		usr.SetActive(true)
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	repo.db.table[usr.ID] = &usr
	return copyUser(usr), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return copyUser(*usr), nil
		}
		return user.User{}, user.ErrNotFound
	}

	var uname, email string
	if len(filter.UsernameOrEmail) > 0 {
		uname = filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
	}

	for _, usr := range repo.db.table {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.Phone != "" && usr.Phone == filter.Phone,
			uname != "" && (usr.Username == uname || usr.Email == email):
			return copyUser(*usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.RLock()
	_, ok := repo.db.table[usr.ID]
	repo.db.RUnlock()
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.CheckUserUniqueness(ctx, usr.Username, usr.Email, usr.Phone, []user.User{usr}); err != nil {
		return user.User{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr = copyUser(usr)
	usr.CreatedAt = orig.CreatedAt
	usr.UpdatedAt = time.Now().UTC()
	if usr.IsActive == nil {
		usr.IsActive = orig.IsActive
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	repo.db.table[usr.ID] = &usr
	return copyUser(usr), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		now := time.Now().UTC()
		if usr.CreatedAt.IsZero() {
			usr.CreatedAt = now
		}
		usr.UpdatedAt = now
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

// isExcluded expects `excludedUsers` to be sorted by ID.
func isExcluded(usr user.User, excludedUsers []user.User) bool {
	n := len(excludedUsers)
	if n == 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excludedUsers[i].ID >= usr.ID })
	return idx < n && excludedUsers[idx].ID == usr.ID
}
