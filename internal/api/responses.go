package api

import (
	"time"

	"codeshare/internal/models"

	"github.com/samber/lo"
)

type ShareResponse struct {
	ShareCode   string           `json:"share_code" example:"aB3x9QzK"`
	UserID      int64            `json:"user_id" example:"1"`
	Type        models.ShareKind `json:"type" example:"file"`
	FileName    string           `json:"file_name,omitempty" example:"report.pdf"`
	FileSize    int64            `json:"file_size" example:"1048576"`
	TextContent *string          `json:"text_content,omitempty"`
	Downloads   int64            `json:"downloads" example:"3"`
	CreatedAt   time.Time        `json:"created_at"`
}

type AdminShareResponse struct {
	ShareResponse
	Username string `json:"username" example:"alice"`
}

// newShareResponse leaves text_content out unless withContent is set.
func newShareResponse(share *models.Share, withContent bool) ShareResponse {
	resp := ShareResponse{
		ShareCode: share.Code,
		UserID:    share.OwnerID,
		Type:      share.Kind,
		FileSize:  share.Size(),
		Downloads: share.Downloads,
		CreatedAt: share.CreatedAt,
	}
	if share.File != nil {
		resp.FileName = share.File.Name
	}
	if share.Text != nil && withContent {
		body := share.Text.Body
		resp.TextContent = &body
	}
	return resp
}

func newShareResponses(shares []models.Share) []ShareResponse {
	return lo.Map(shares, func(s models.Share, _ int) ShareResponse {
		return newShareResponse(&s, true)
	})
}

func newAdminShareResponses(shares []models.ShareWithOwner) []AdminShareResponse {
	return lo.Map(shares, func(s models.ShareWithOwner, _ int) AdminShareResponse {
		return AdminShareResponse{
			ShareResponse: newShareResponse(&s.Share, false),
			Username:      s.OwnerUsername,
		}
	})
}

type UserResponse struct {
	ID        int64       `json:"id" example:"1"`
	Username  string      `json:"username" example:"alice"`
	Email     string      `json:"email" example:"alice@example.com"`
	Role      models.Role `json:"role" example:"user"`
	CreatedAt time.Time   `json:"created_at"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func newUserResponses(users []models.User) []UserResponse {
	return lo.Map(users, func(u models.User, _ int) UserResponse {
		return newUserResponse(&u)
	})
}
