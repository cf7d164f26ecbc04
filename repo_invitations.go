package access

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invitations is the Bun-backed InvitationStore.
type Invitations interface {
	InvitationStore
}

type invitations struct {
	repository.Repository[*Invitation]
	db *bun.DB
}

var _ Invitations = (*invitations)(nil)

// NewInvitationsRepository creates a durable InvitationStore over db.
func NewInvitationsRepository(db *bun.DB) Invitations {
	repo := repository.NewRepository[*Invitation](db, repository.ModelHandlers[*Invitation]{
		NewRecord: func() *Invitation { return &Invitation{} },
		GetID: func(i *Invitation) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Invitation, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
	})

	return &invitations{
		Repository: repo,
		db:         db,
	}
}

// GetByID implements InvitationStore.
func (r *invitations) GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	record := &Invitation{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvitationNotFound.WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

// GetByToken implements InvitationStore.
func (r *invitations) GetByToken(ctx context.Context, token string) (*Invitation, error) {
	record := &Invitation{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return record, nil
}

// GetPending implements InvitationStore.
func (r *invitations) GetPending(ctx context.Context, accountID uuid.UUID, email string) (*Invitation, error) {
	record := &Invitation{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Where("lower(?TableAlias.email) = lower(?)", email).
		Where("?TableAlias.status = ?", InvitationStatusPending).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListByAccount implements InvitationStore.
func (r *invitations) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Invitation, error) {
	var records []*Invitation
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create implements InvitationStore.
func (r *invitations) Create(ctx context.Context, invitation *Invitation) (*Invitation, error) {
	if invitation.ID == uuid.Nil {
		invitation.ID = uuid.New()
	}

	_, err := r.db.NewInsert().
		Model(invitation).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

// Update implements InvitationStore.
func (r *invitations) Update(ctx context.Context, invitation *Invitation) (*Invitation, error) {
	res, err := r.db.NewUpdate().
		Model(invitation).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrInvitationNotFound.WithMetadata(map[string]any{"id": invitation.ID.String()})
	}

	return invitation, nil
}

// DeleteByAccount implements InvitationStore.
func (r *invitations) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*Invitation)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}
