package repo

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kvasnecov/institute_platform/internal/models"
)

func newTestRepo(t *testing.T) *GormUserRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a second pooled connection would see its own empty :memory: db
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	return NewGormUserRepo(db)
}

func TestGormUserRepo_CreateLocalAndFind(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	user, err := r.CreateLocal(ctx, "a@b.com", "A", "hash", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.ProviderLocal, user.Provider)
	assert.True(t, user.IsActive)

	byEmail, err := r.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := r.FindByEmailOrUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	byID, err := r.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)
}

// The username column itself is unique, so a duplicate that slips past the
// service pre-check still cannot persist twice.
func TestGormUserRepo_CreateLocal_DuplicateUsernameRejected(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateLocal(ctx, "a@b.com", "A", "hash", "alice")
	require.NoError(t, err)

	_, err = r.CreateLocal(ctx, "b@b.com", "B", "hash", "alice")
	require.Error(t, err)

	var count int64
	require.NoError(t, r.DB.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormUserRepo_CreateLocal_EmptyUsernamesDoNotCollide(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	first, err := r.CreateLocal(ctx, "a@b.com", "A", "hash", "")
	require.NoError(t, err)
	assert.Nil(t, first.Username)

	_, err = r.CreateLocal(ctx, "b@b.com", "B", "hash", "")
	require.NoError(t, err)
}

func TestGormUserRepo_Update_ClearUsername(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	user, err := r.CreateLocal(ctx, "a@b.com", "A", "hash", "alice")
	require.NoError(t, err)

	empty := ""
	updated, err := r.Update(ctx, user.ID, models.UserUpdate{Username: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.Username)
}

func TestGormUserRepo_FindNotFound(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.FindByEmail(ctx, "missing@b.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.FindByEmailOrUsername(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormUserRepo_UpsertOAuth_CreatesNewUser(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	user, err := r.UpsertOAuth(ctx, models.OAuthProfile{
		Provider:   models.ProviderGoogle,
		ProviderID: "g-123",
		Email:      "new@b.com",
		Name:       "New User",
		AvatarURL:  "https://avatars/x.png",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, user.Provider)
	assert.Equal(t, "g-123", user.ProviderID)
	assert.Equal(t, "New User", user.Name)
	assert.True(t, user.IsActive)
}

func TestGormUserRepo_UpsertOAuth_MergesByEmailKeepingName(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	local, err := r.CreateLocal(ctx, "a@b.com", "Local Name", "hash", "")
	require.NoError(t, err)

	merged, err := r.UpsertOAuth(ctx, models.OAuthProfile{
		Provider:   models.ProviderGithub,
		ProviderID: "gh-9",
		Email:      "a@b.com",
		Name:       "GitHub Name",
	})
	require.NoError(t, err)

	// same identity, most recent provider, original name preserved
	assert.Equal(t, local.ID, merged.ID)
	assert.Equal(t, models.ProviderGithub, merged.Provider)
	assert.Equal(t, "gh-9", merged.ProviderID)
	assert.Equal(t, "Local Name", merged.Name)
	assert.Equal(t, "hash", merged.PasswordHash)

	var count int64
	require.NoError(t, r.DB.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormUserRepo_Update_PartialFieldsOnly(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	user, err := r.CreateLocal(ctx, "a@b.com", "A", "hash", "alice")
	require.NoError(t, err)

	phone := "+7 900 000-00-00"
	dob := time.Date(2000, 5, 1, 0, 0, 0, 0, time.UTC)
	updated, err := r.Update(ctx, user.ID, models.UserUpdate{
		PhoneNumber: &phone,
		DOB:         &dob,
	})
	require.NoError(t, err)

	assert.Equal(t, phone, updated.PhoneNumber)
	require.NotNil(t, updated.DOB)
	assert.Equal(t, dob.Year(), updated.DOB.Year())
	// untouched fields survive
	assert.Equal(t, "A", updated.Name)
	require.NotNil(t, updated.Username)
	assert.Equal(t, "alice", *updated.Username)
	assert.Equal(t, "hash", updated.PasswordHash)
}

func TestGormUserRepo_Update_UnknownUser(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	name := "X"

	_, err := r.Update(context.Background(), "missing", models.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormUserRepo_Update_AvatarBytes(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	user, err := r.CreateLocal(ctx, "a@b.com", "A", "hash", "")
	require.NoError(t, err)

	mime := "image/png"
	updated, err := r.Update(ctx, user.ID, models.UserUpdate{
		AvatarData:     []byte{0x89, 0x50, 0x4e, 0x47},
		AvatarMimeType: &mime,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, updated.AvatarData)
	assert.Equal(t, mime, updated.AvatarMimeType)
}
