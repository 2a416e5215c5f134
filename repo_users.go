package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the bun backed UserDirectory
type Users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var _ UserDirectory = (*Users)(nil)

func NewUsersRepository(db *bun.DB) *Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &Users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// CreateUsersTable creates the users table when missing
func CreateUsersTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (a *Users) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	user, err := a.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, a.mapError(err, "find_by_id")
	}
	return user, nil
}

func (a *Users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.findOne(ctx, "email", email)
}

func (a *Users) FindByFederatedID(ctx context.Context, federatedID string) (UserLookup, error) {
	user, err := a.findOne(ctx, "google_id", federatedID)
	if err != nil {
		if IsNotFound(err) {
			return NotFound(), nil
		}
		return NotFound(), err
	}
	return Found(user), nil
}

func (a *Users) findOne(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.mapError(err, "find_by_"+column)
	}
	return record, nil
}

func (a *Users) Create(ctx context.Context, record *User) (*User, error) {
	prepareUserDefaults(record)

	now := a.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	user, err := a.Repository.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, a.mapError(err, "create")
	}
	return user, nil
}

func (a *Users) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error) {
	changed, err := a.UpdateIf(ctx, id, UserCondition{}, patch)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrUserNotFound
	}
	return a.FindByID(ctx, id.String())
}

// UpdateIf runs a single conditional UPDATE so compare and clear happen
// atomically with respect to concurrent requests for the same user.
func (a *Users) UpdateIf(ctx context.Context, id uuid.UUID, cond UserCondition, patch UserPatch) (bool, error) {
	q := a.db.NewUpdate().
		Model((*User)(nil)).
		Where("id = ?", id)

	for _, c := range patch.columns() {
		q = q.Set("? = ?", bun.Ident(c.column), c.value)
	}
	q = q.Set("updated_at = ?", a.now())

	if cond.OTPCode != nil {
		q = q.Where("otp_code = ?", *cond.OTPCode)
	}
	if cond.OTPValidAt != nil {
		q = q.Where("otp_expires_at > ?", *cond.OTPValidAt)
	}
	if cond.ResetTicket != nil {
		q = q.Where("reset_ticket = ?", *cond.ResetTicket)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, a.mapError(err, "update")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, a.mapError(err, "update")
	}
	return n > 0, nil
}

func (a *Users) mapError(err error, op string) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return unavailable(err, "users."+op)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
