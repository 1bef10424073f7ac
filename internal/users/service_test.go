package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/clock"
)

var userEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *MemoryRepo, *auth.Issuer) {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", "permit-api", "permit-ui")
	require.NoError(t, err)
	repo := NewMemoryRepo()
	n := 0
	svc := &Service{
		Repo:     repo,
		Tokens:   issuer,
		Clock:    clock.NewFixed(userEpoch),
		HashCost: bcrypt.MinCost,
		NewID: func() string {
			n++
			return fmt.Sprintf("user-%d", n)
		},
	}
	return svc, repo, issuer
}

func TestRegisterStoresHashedCustomer(t *testing.T) {
	svc, repo, _ := newTestService(t)

	user, err := svc.Register(context.Background(), RegisterInput{Name: " Ada ", Email: "Ada@Example.com", Password: "sunshine42"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, auth.RoleCustomer, user.Role)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name)

	stored, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, "sunshine42", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("sunshine42")))
	assert.Equal(t, userEpoch, stored.CreatedAt)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "sunshine42"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterCollectsValidationIssues(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 3)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _, issuer := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)

	token, err := svc.Login(ctx, "ada@example.com", "sunshine42")
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, auth.RoleCustomer, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "sunshine42")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong-password", "moonlight99"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "sunshine42", "moonlight99"))

	_, err = svc.Login(ctx, "ada@example.com", "sunshine42")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ada@example.com", "moonlight99")
	assert.NoError(t, err)
}

func TestUpdateProfileAppliesOnlyProvidedFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)

	city, company := "Austin", " Sunrise Solar "
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{City: &city, Company: &company})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Name)
	assert.Equal(t, "Austin", updated.City)
	assert.Equal(t, "Sunrise Solar", updated.Company)

	empty := ""
	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: &empty})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)
	grace, err := svc.Register(ctx, RegisterInput{Name: "Grace", Email: "grace@example.com", Password: "sunshine42"})
	require.NoError(t, err)

	taken := "ada@example.com"
	_, err = svc.UpdateProfile(ctx, grace.ID, ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpsertExternalReusesExistingAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "sunshine42"})
	require.NoError(t, err)

	user, err := svc.UpsertExternal(ctx, "ADA@example.com", "Ada L")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	created, err := svc.UpsertExternal(ctx, "grace@example.com", "Grace")
	require.NoError(t, err)
	assert.Equal(t, "user-2", created.ID)
	assert.Empty(t, created.PasswordHash)

	_, err = svc.Login(ctx, "grace@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
