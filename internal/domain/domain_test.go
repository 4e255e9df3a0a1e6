package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainIDIsValid(t *testing.T) {
	t.Parallel()

	for _, id := range AllDomains {
		assert.True(t, id.IsValid(), id)
	}
	assert.False(t, DomainID("bank_statements").IsValid())
	assert.False(t, DomainID("").IsValid())
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	v, err := DecodePayload(DomainProfile, []byte(`{"full_name":"Ana Maria Souza"}`))
	require.NoError(t, err)
	p, ok := v.(*Profile)
	require.True(t, ok)
	assert.Equal(t, "Ana", p.FirstName())

	v, err = DecodePayload(DomainMood, []byte(`{"score":4}`))
	require.NoError(t, err)
	assert.Equal(t, Generic{"score": float64(4)}, v)

	_, err = DecodePayload(DomainWeightHistory, []byte(`not json`))
	assert.ErrorContains(t, err, "decode weight_history payload")
}

func TestUserContextAccessors(t *testing.T) {
	t.Parallel()

	uc := &UserContext{Domains: map[DomainID]DomainRecordSet{
		DomainProfile: {OK: true, Records: []Record{{ID: "new", Data: &Profile{FullName: "Bia"}}, {ID: "old"}}},
		DomainSleep:   {OK: false, Error: "timeout", Records: []Record{{ID: "stale"}}},
	}}

	latest, ok := uc.Latest(DomainProfile)
	require.True(t, ok)
	assert.Equal(t, "new", latest.ID)
	assert.Equal(t, "Bia", uc.Profile().FirstName())

	assert.Nil(t, uc.Records(DomainSleep), "failed fetches expose no records")
	_, ok = uc.Latest(DomainWater)
	assert.False(t, ok)

	var nilCtx *UserContext
	assert.Nil(t, nilCtx.Records(DomainProfile))
	assert.Nil(t, nilCtx.Profile())
	assert.Empty(t, nilCtx.Profile().FirstName())
}

func TestDomainRecordSetPresent(t *testing.T) {
	t.Parallel()

	assert.True(t, DomainRecordSet{OK: true, Records: []Record{{}}}.Present())
	assert.False(t, DomainRecordSet{OK: true}.Present())
	assert.False(t, DomainRecordSet{OK: false, Records: []Record{{}}}.Present())
}

func TestActiveStates(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Goal{Status: "in_progress"}).IsActive())
	assert.False(t, (&Goal{Status: "completed"}).IsActive())
	assert.False(t, (&Goal{Status: "rejected"}).IsActive())

	assert.True(t, (&ChallengeParticipation{}).IsActive())
	assert.False(t, (&ChallengeParticipation{Completed: true}).IsActive())
	var none *ChallengeParticipation
	assert.False(t, none.IsActive())
}
