package access

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Memberships() Memberships
	Invitations() Invitations
}

type mngr struct {
	db          *bun.DB
	memberships Memberships
	invitations Invitations
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		memberships: NewMembershipsRepository(db),
		invitations: NewInvitationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.memberships == nil {
		return errors.New("repository memberships should be initialized")
	}

	if m.invitations == nil {
		return errors.New("repository invitations should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Memberships() Memberships {
	return m.memberships
}

func (m mngr) Invitations() Invitations {
	return m.invitations
}
