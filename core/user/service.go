package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUserExists     = errors.New("a user with this username, email or phone already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrPhoneExists    = errors.New("a user with this phone already exists")

	NowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	Repository interface {
		// CheckUserUniqueness returns one of ErrUsernameExists, ErrEmailExists or ErrPhoneExists.
		// Empty values are not checked.
		CheckUserUniqueness(ctx context.Context, username, email, phone string, excludedUsers []User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, uname, email, phone string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetByPhone(ctx context.Context, phone string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		NormalizePhone(phone string) string
		messaging.ParticipantResolver
	}

	Service struct {
		repo      Repository
		logger    core.Logger
		defaultCC string
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		defaultCC: conf.Messaging.DefaultCountryCode,
	}
}

func (svc *Service) NormalizePhone(phone string) string {
	return core.NormalizePhone(phone, svc.defaultCC)
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email, phone string, exclUsers ...User) error {
	if err := svc.repo.CheckUserUniqueness(ctx, uname, email, phone, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrPhoneExists:
			field = "phone"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
}

func (svc *Service) GetByPhone(ctx context.Context, phone string) (User, error) {
	phone = svc.NormalizePhone(phone)
	if phone == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Phone: phone})
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResolveParticipant identifies a phone number using the school directory.
// Unknown phones are classified as messaging.ParticipantUnknown.
func (svc *Service) ResolveParticipant(ctx context.Context, phone string) (messaging.Participant, error) {
	usr, err := svc.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return messaging.Participant{
				Type:     messaging.ParticipantUnknown,
				Metadata: map[string]string{messaging.MetaIdentifiedBy: "none"},
			}, nil
		}
		return messaging.Participant{}, errors.Wrap(err, "finding user by phone")
	}

	meta := map[string]string{
		messaging.MetaIdentifiedBy: identifiedByDirectory,
		messaging.MetaUserID:       usr.ID,
	}
	if role := HighestRole(usr.Roles); role != "" {
		meta[messaging.MetaRole] = role
	}
	return messaging.Participant{
		Type:     usr.ParticipantType(),
		ID:       usr.ID,
		Name:     usr.Name,
		Metadata: meta,
	}, nil
}
