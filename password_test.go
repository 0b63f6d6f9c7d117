package auth_test

import (
	"strings"
	"testing"

	auth "github.com/goliatone/go-pwauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashIsSaltedAndVerifies(t *testing.T) {
	h := testHasher()

	d1, err := h.Hash("secret")
	require.NoError(t, err)
	d2, err := h.Hash("secret")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
	assert.True(t, strings.HasPrefix(d1, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.True(t, h.Verify("secret", d1))
	assert.True(t, h.Verify("secret", d2))
}

func TestHasher_Verify(t *testing.T) {
	h := testHasher()
	digest := mustDigest(h, "p1")

	bcryptDigest, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		digest   string
		want     bool
	}{
		{name: "matching password", password: "p1", digest: digest, want: true},
		{name: "wrong password", password: "p2", digest: digest, want: false},
		{name: "empty digest", password: "p1", digest: "", want: false},
		{name: "garbage digest", password: "p1", digest: "not-a-digest", want: false},
		{name: "unknown algorithm", password: "p1", digest: "$md5$abc$def", want: false},
		{name: "truncated argon2 digest", password: "p1", digest: digest[:strings.LastIndex(digest, "$")], want: false},
		{name: "bad base64 in hash", password: "p1", digest: digest[:strings.LastIndex(digest, "$")+1] + "!!!", want: false},
		{name: "hostile memory parameter", password: "p1", digest: strings.Replace(digest, "m=1024", "m=99999999", 1), want: false},
		{name: "legacy bcrypt digest", password: "legacy", digest: string(bcryptDigest), want: true},
		{name: "legacy bcrypt wrong password", password: "nope", digest: string(bcryptDigest), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Verify(tt.password, tt.digest))
		})
	}
}

func TestHasher_HashRejectsEmptyPassword(t *testing.T) {
	h := testHasher()
	_, err := h.Hash("")
	require.Error(t, err)
	assert.Equal(t, auth.KindBadInput, auth.KindOf(err))

	assert.False(t, h.Verify("", mustDigest(h, "secret")))
	assert.False(t, h.Verify("", h.DummyDigest()))
}

func TestArgon2idStrategy_ClampsToVerifiableParams(t *testing.T) {
	strategy := auth.NewArgon2idStrategy(auth.Argon2Params{Time: 65, Memory: 1024, Threads: 1})
	assert.Equal(t, uint32(64), strategy.Params().Time)

	h := auth.NewHasher(strategy)
	digest := mustDigest(h, "secret")
	assert.True(t, h.Verify("secret", digest))
}

func TestHasher_NeedsRehash(t *testing.T) {
	weak := auth.NewHasher(auth.NewArgon2idStrategy(auth.Argon2Params{Time: 1, Memory: 512, Threads: 1}))
	strong := testHasher()

	weakDigest := mustDigest(weak, "secret")
	strongDigest := mustDigest(strong, "secret")
	bcryptDigest, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, strong.NeedsRehash(weakDigest))
	assert.False(t, strong.NeedsRehash(strongDigest))
	assert.True(t, strong.NeedsRehash(string(bcryptDigest)))
	assert.True(t, strong.NeedsRehash("garbage"))

	// weaker params still verify
	assert.True(t, strong.Verify("secret", weakDigest))
}

func TestHasher_DummyDigestNeverMatchesCommonInput(t *testing.T) {
	h := testHasher()
	dummy := h.DummyDigest()

	require.NotEmpty(t, dummy)
	assert.Equal(t, dummy, h.DummyDigest())
	assert.False(t, h.Verify("", dummy))
	assert.False(t, h.Verify("password", dummy))
}

func TestBcryptStrategy_TooLongPassword(t *testing.T) {
	s := auth.NewBcryptStrategy(bcrypt.MinCost)
	_, err := s.Hash(strings.Repeat("a", 73))
	require.Error(t, err)
	assert.Equal(t, auth.KindBadInput, auth.KindOf(err))
}

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("securePassword123!")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePasswordAndHash("securePassword123!", hash))

	err = auth.ComparePasswordAndHash("wrong", hash)
	assert.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))

	assert.NotEmpty(t, auth.RandomPasswordHash())
}
