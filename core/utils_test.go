package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		lower bool
		want  string
	}{
		{name: "trim", in: "  Ama Banda \t", want: "Ama Banda"},
		{name: "trim & lower", in: " AMA@Test.MW ", lower: true, want: "ama@test.mw"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.in, tt.lower))
		})
	}
}

func TestCleanStrings(t *testing.T) {
	assert.Equal(t, []string{"airtel", "bank"}, CleanStrings([]string{" airtel ", "", "  ", "bank"}))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2010-05-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 12, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2010-05-12T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 12, 8, 30, 0, 0, time.UTC), d)

	_, err = ParseDate("12/05/2010")
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		otp, err := GenerateOTP(6)
		require.NoError(t, err)
		assert.Len(t, otp, 6)
		assert.Regexp(t, `^[0-9]{6}$`, otp)
		seen[otp] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)

	otp, err := GenerateOTP(0)
	require.NoError(t, err)
	assert.Len(t, otp, 6)
}
