package rest

import (
	"time"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// SignUpRequest is the sign-up payload
type SignUpRequest struct {
	Address       string `json:"address" binding:"required"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Message       string `json:"message" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

// SignInRequest is the sign-in payload
type SignInRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

// CreatePoolRequest is the pool creation payload
type CreatePoolRequest struct {
	Chain       domain.Chain `json:"chain" binding:"required"`
	Title       string       `json:"title" binding:"required"`
	Description string       `json:"description"`
}

// NonceResponse carries a fresh sign-in challenge
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// TokenResponse carries a fresh access token
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// PoolResponse is the public view of a donation pool
type PoolResponse struct {
	IDHash        string            `json:"id_hash"`
	Chain         domain.Chain      `json:"chain"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Status        domain.PoolStatus `json:"status"`
	OnChainPoolID *uint64           `json:"on_chain_pool_id,omitempty"`
	OwnerAddress  *string           `json:"owner_address,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// DonationResponse is the public view of a donation
type DonationResponse struct {
	DonorAddress string       `json:"donor_address"`
	TokenAddress string       `json:"token_address"`
	Amount       string       `json:"amount"`
	Message      string       `json:"message,omitempty"`
	Recurring    bool         `json:"recurring"`
	Chain        domain.Chain `json:"chain"`
	TxHash       string       `json:"tx_hash"`
	DonatedAt    time.Time    `json:"donated_at"`
}

func toUserResponse(u *schema.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Address:   u.Address,
		Username:  u.Username,
		Email:     u.Email,
		Completed: u.Completed,
		CreatedAt: u.CreatedAt,
	}
}

func toPoolResponse(p *schema.DonationPool) PoolResponse {
	return PoolResponse{
		IDHash:        p.IDHash,
		Chain:         p.Chain,
		Title:         p.Title,
		Description:   p.Description,
		Status:        p.Status,
		OnChainPoolID: p.OnChainPoolID,
		OwnerAddress:  p.OwnerAddress,
		CreatedAt:     p.CreatedAt,
	}
}

func toDonationResponse(d *schema.Donation) DonationResponse {
	return DonationResponse{
		DonorAddress: d.DonorAddress,
		TokenAddress: d.TokenAddress,
		Amount:       d.Amount,
		Message:      d.Message,
		Recurring:    d.Recurring,
		Chain:        d.Chain,
		TxHash:       d.TxHash,
		DonatedAt:    d.DonatedAt,
	}
}
