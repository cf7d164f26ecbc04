package access

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Memberships is the Bun-backed MembershipStore.
type Memberships interface {
	MembershipStore
	repository.Repository[*Membership]
}

type memberships struct {
	repository.Repository[*Membership]
	db *bun.DB
}

var (
	_ Memberships                        = (*memberships)(nil)
	_ repository.Repository[*Membership] = (*memberships)(nil)
)

// NewMembershipsRepository creates a durable MembershipStore over db.
func NewMembershipsRepository(db *bun.DB) Memberships {
	repo := repository.NewRepository[*Membership](db, repository.ModelHandlers[*Membership]{
		NewRecord: func() *Membership { return &Membership{} },
		GetID: func(m *Membership) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *Membership, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})

	return &memberships{
		Repository: repo,
		db:         db,
	}
}

// GetMembers implements MembershipStore.
func (r *memberships) GetMembers(ctx context.Context, accountID uuid.UUID) ([]*Membership, error) {
	var records []*Membership
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetMembership implements MembershipStore.
func (r *memberships) GetMembership(ctx context.Context, accountID, userID uuid.UUID) (*Membership, error) {
	record := &Membership{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrMembershipNotFound.WithMetadata(map[string]any{
				"account_id": accountID.String(),
				"user_id":    userID.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

// UpsertMembership implements MembershipStore. The (account_id, user_id)
// pair is the conflict target so the store never holds two rows for the
// same member.
func (r *memberships) UpsertMembership(ctx context.Context, membership *Membership) (*Membership, error) {
	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}

	_, err := r.db.NewInsert().
		Model(membership).
		On("CONFLICT (account_id, user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return r.GetMembership(ctx, membership.AccountID, membership.UserID)
}

// DeleteMembership implements MembershipStore.
func (r *memberships) DeleteMembership(ctx context.Context, accountID, userID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Membership)(nil)).
		Where("account_id = ?", accountID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrMembershipNotFound.WithMetadata(map[string]any{
			"account_id": accountID.String(),
			"user_id":    userID.String(),
		})
	}

	return nil
}

// DeleteByAccount implements MembershipStore.
func (r *memberships) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*Membership)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}
