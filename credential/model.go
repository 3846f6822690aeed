package credential

import (
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/uptrace/bun"
)

type principalModel struct {
	bun.BaseModel `bun:"table:principals,alias:p"`

	ID             int64     `bun:"id,pk"`
	ExternalUUID   string    `bun:"external_uuid,notnull,unique"`
	Email          string    `bun:"email,notnull,unique"`
	PasswordHash   string    `bun:"password_hash,nullzero"`
	Role           string    `bun:"role,notnull"`
	LoginType      string    `bun:"login_type,notnull"`
	SocialProvider string    `bun:"social_provider,notnull"`
	AccountLocked  bool      `bun:"account_locked,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func toModel(p authcore.Principal) *principalModel {
	return &principalModel{
		ID:             p.ID,
		ExternalUUID:   p.ExternalUUID,
		Email:          p.Email,
		PasswordHash:   p.PasswordHash,
		Role:           string(p.Role),
		LoginType:      string(p.LoginType),
		SocialProvider: string(p.SocialProvider),
		AccountLocked:  p.AccountLocked,
		CreatedAt:      p.CreatedAt,
	}
}

func (m *principalModel) principal() authcore.Principal {
	return authcore.Principal{
		ID:             m.ID,
		ExternalUUID:   m.ExternalUUID,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		Role:           authcore.Role(m.Role),
		LoginType:      authcore.LoginType(m.LoginType),
		SocialProvider: authcore.SocialProvider(m.SocialProvider),
		AccountLocked:  m.AccountLocked,
		CreatedAt:      m.CreatedAt,
	}
}
