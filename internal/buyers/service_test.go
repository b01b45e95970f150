package buyers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/auth"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:buyers_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Buyer{}))
	return conn
}

func testPasswordConfig() config.PasswordConfig {
	// cheap parameters keep the suite fast
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	jwtCfg := config.JWTConfig{Secret: "secret", Issuer: "ingresso", ExpirationMinutes: 30}
	svc, err := NewService(NewRepository(db), jwtCfg, testPasswordConfig(), nil)
	require.NoError(t, err)
	return svc
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Name:     "Maria Souza",
		Email:    "Maria.Souza@Example.com",
		CPF:      "529.982.247-25",
		Password: "correct-horse",
	}
}

func TestRegisterNormalizesAndHashes(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	buyer, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	assert.Equal(t, "maria.souza@example.com", buyer.Email)
	assert.Equal(t, "52998224725", buyer.CPF)
	assert.Equal(t, enums.RoleBuyer, buyer.Role)
	assert.NotEqual(t, "correct-horse", buyer.PasswordHash)
	assert.Contains(t, buyer.PasswordHash, "$argon2id$")
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	dupe := validRegisterInput()
	dupe.Email = "MARIA.SOUZA@example.com"
	_, err = svc.Register(ctx, dupe)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"bad cpf", func(in *RegisterInput) { in.CPF = "1234" }},
		{"missing name", func(in *RegisterInput) { in.Name = "  " }},
		{"missing email", func(in *RegisterInput) { in.Email = "" }},
		{"admin role refused", func(in *RegisterInput) { in.Role = enums.RoleAdmin }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validRegisterInput()
			tc.mutate(&input)
			_, err := svc.Register(ctx, input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestLoginMintsParsableToken(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	input := validRegisterInput()
	input.Role = enums.RoleOrganizer
	registered, err := svc.Register(ctx, input)
	require.NoError(t, err)

	session, err := svc.Login(ctx, LoginInput{Email: "maria.souza@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotNil(t, session.Buyer)
	assert.Equal(t, registered.ID, session.Buyer.ID)

	jwtCfg := config.JWTConfig{Secret: "secret", Issuer: "ingresso", ExpirationMinutes: 30}
	claims, err := auth.ParseAccessToken(jwtCfg, session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.BuyerID)
	assert.Equal(t, enums.RoleOrganizer, claims.Role)
}

func TestLoginDoesNotLeakAccountExistence(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	_, errWrong := svc.Login(ctx, LoginInput{Email: "maria.souza@example.com", Password: "wrong"})
	_, errUnknown := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever"})

	typedWrong := pkgerrors.As(errWrong)
	typedUnknown := pkgerrors.As(errUnknown)
	require.NotNil(t, typedWrong)
	require.NotNil(t, typedUnknown)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typedWrong.Code())
	assert.Equal(t, pkgerrors.CodeUnauthorized, typedUnknown.Code())
	assert.Equal(t, typedWrong.Error(), typedUnknown.Error())
}

func TestGetByID(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	found, err := svc.GetByID(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, registered.Email, found.Email)

	_, err = svc.GetByID(ctx, uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
