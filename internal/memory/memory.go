// Package memory implements the repositories in process memory, for
// development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/repository"
)

// DB holds users and shares behind one mutex.
type DB struct {
	mu     sync.Mutex
	users  []*models.User
	shares map[string]*shareRow

	userIDCounter int64
	shareSeq      int64
	now           func() time.Time
}

type shareRow struct {
	share models.Share
	seq   int64
}

func New() *DB {
	return &DB{
		shares: make(map[string]*shareRow),
		now:    time.Now,
	}
}

var (
	_ repository.UserRepository  = (*DB)(nil)
	_ repository.ShareRepository = (*DB)(nil)
	_ repository.Pinger          = (*DB)(nil)
)

func (db *DB) Ping(ctx context.Context) error {
	return nil
}

// --- UserRepository ---

func (db *DB) CreateUser(ctx context.Context, arg repository.CreateUserParams) (*models.User, error) {
	if !arg.Role.Valid() {
		return nil, repository.ErrInvalidRole
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == arg.Username {
			return nil, repository.ErrDuplicateUsername
		}
		if strings.EqualFold(u.Email, arg.Email) {
			return nil, repository.ErrDuplicateEmail
		}
	}

	db.userIDCounter++
	user := &models.User{
		ID:           db.userIDCounter,
		Username:     arg.Username,
		Email:        strings.ToLower(arg.Email),
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		CreatedAt:    db.now().UTC(),
	}
	db.users = append(db.users, user)

	cp := *user
	return &cp, nil
}

func (db *DB) findUser(match func(*models.User) bool) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.findUser(func(u *models.User) bool { return u.ID == id }), nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(func(u *models.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.findUser(func(u *models.User) bool { return u.Username == username }), nil
}

func (db *DB) PromoteUser(ctx context.Context, username string) (*models.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username != username {
			continue
		}
		changed := u.Role != models.RoleAdmin
		u.Role = models.RoleAdmin
		cp := *u
		return &cp, changed, nil
	}
	return nil, false, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	users := make([]models.User, 0, len(db.users))
	for _, u := range db.users {
		users = append(users, *u)
	}
	return users, nil
}

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return int64(len(db.users)), nil
}

// --- ShareRepository ---

func copyShare(s models.Share) models.Share {
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	if s.Text != nil {
		t := *s.Text
		s.Text = &t
	}
	return s
}

func (db *DB) CreateShare(ctx context.Context, share *models.Share) (*models.Share, error) {
	if err := share.Validate(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.shares[share.Code]; taken {
		return nil, repository.ErrCodeTaken
	}

	db.shareSeq++
	row := &shareRow{share: copyShare(*share), seq: db.shareSeq}
	row.share.Downloads = 0
	row.share.CreatedAt = db.now().UTC()
	db.shares[share.Code] = row

	out := copyShare(row.share)
	return &out, nil
}

func (db *DB) GetShareByCode(ctx context.Context, code string) (*models.Share, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row, ok := db.shares[code]
	if !ok {
		return nil, nil
	}
	out := copyShare(row.share)
	return &out, nil
}

func (db *DB) IncrementDownloads(ctx context.Context, code string) (*models.Share, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row, ok := db.shares[code]
	if !ok {
		return nil, nil
	}
	row.share.Downloads++
	out := copyShare(row.share)
	return &out, nil
}

func (db *DB) sortedRows(keep func(*shareRow) bool) []*shareRow {
	rows := make([]*shareRow, 0, len(db.shares))
	for _, row := range db.shares {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.share.CreatedAt.Equal(b.share.CreatedAt) {
			return a.share.CreatedAt.After(b.share.CreatedAt)
		}
		return a.seq > b.seq
	})
	return rows
}

func (db *DB) ListSharesByOwner(ctx context.Context, ownerID int64) ([]models.Share, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows := db.sortedRows(func(r *shareRow) bool { return r.share.OwnerID == ownerID })
	shares := make([]models.Share, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, copyShare(row.share))
	}
	return shares, nil
}

func (db *DB) ListAllShares(ctx context.Context) ([]models.ShareWithOwner, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := make(map[int64]string, len(db.users))
	for _, u := range db.users {
		names[u.ID] = u.Username
	}

	rows := db.sortedRows(func(*shareRow) bool { return true })
	shares := make([]models.ShareWithOwner, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, models.ShareWithOwner{
			Share:         copyShare(row.share),
			OwnerUsername: names[row.share.OwnerID],
		})
	}
	return shares, nil
}

func (db *DB) DeleteShare(ctx context.Context, code string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.shares[code]; !ok {
		return false, nil
	}
	delete(db.shares, code)
	return true, nil
}

func (db *DB) CountShares(ctx context.Context) (models.ShareCounts, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var counts models.ShareCounts
	for _, row := range db.shares {
		counts.Total++
		switch row.share.Kind {
		case models.KindFile:
			counts.Files++
			counts.TotalFileBytes += row.share.File.Size
		case models.KindText:
			counts.Texts++
		}
	}
	return counts, nil
}
