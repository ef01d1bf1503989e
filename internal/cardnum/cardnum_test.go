package cardnum

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestLuhn(t *testing.T) {
	valid := []string{
		"4111111111111111",
		"4242424242424242",
		"5555555555554444",
		"378282246310005",
		"6011111111111117",
		"30569309025904",
		"0",
	}
	for _, pan := range valid {
		assert.True(t, Luhn(pan), pan)
	}
	assert.False(t, Luhn("4111111111111112"))
	assert.False(t, Luhn(""))
	assert.False(t, Luhn("4111 1111"))
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		pan  string
		want bool
	}{
		{"4111111111111111", true},
		{"378282246310005", true},
		{"4111111111111112", false},
		{"0", false},           // Luhn-valid but too short
		{"00000000000", false}, // 11 digits
		{"000000000000", true}, // 12 zeros pass the checksum
		{"41111111111111111111", false},
		{"411111111111111a", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValid(tt.pan), tt.pan)
	}
}

func TestIssuerOf(t *testing.T) {
	tests := []struct {
		pan  string
		want Issuer
	}{
		{"4111111111111111", Visa},
		{"5555555555554444", Mastercard},
		{"2223003122003222", Mastercard},
		{"378282246310005", AmericanExpress},
		{"341111111111111", AmericanExpress},
		{"6011111111111117", Discover},
		{"6445644564456445", Discover},
		{"6221260000000000", Discover},
		{"6200000000000005", UnionPay},
		{"3530111333300000", JCB},
		{"30569309025904", DinersClub},
		{"38520000023237", DinersClub},
		{"9999999999999995", Unknown},
		{"abc", Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IssuerOf(tt.pan), tt.pan)
	}
	assert.Equal(t, "American Express", AmericanExpress.String())
	assert.Equal(t, "Unknown", Issuer("other").String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "4111 1111 1111 1111", Format("4111111111111111"))
	assert.Equal(t, "3782 822463 10005", Format("378282246310005"))
	assert.Equal(t, "3056 930902 5904", Format("30569309025904"))
	assert.Equal(t, "6011 1111 1111 1111 117", Format("6011111111111111117"))
	assert.Equal(t, "", Format(""))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "************1111", Mask("4111111111111111"))
	assert.Equal(t, "123", Mask("123"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "4111111111111111", Normalize("４１１１ １１１１-1111 1111"))
	assert.Equal(t, "4111x", Normalize("4111 x"))
}

func TestLuhn_SingleDigitErrorsDetected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("changing one digit of a valid number breaks the checksum", prop.ForAll(
		func(pos int, delta int) bool {
			const pan = "4111111111111111"
			b := []byte(pan)
			b[pos] = byte('0' + (int(b[pos]-'0')+delta)%10)
			return !Luhn(string(b))
		},
		gen.IntRange(0, 15),
		gen.IntRange(1, 9),
	))

	properties.TestingRun(t)
}
