package cigar

import (
	"math/rand"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(t sam.CigarOpType, n int) sam.CigarOp { return sam.NewCigarOp(t, n) }

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want sam.Cigar
	}{
		{"10M", sam.Cigar{op(sam.CigarMatch, 10)}},
		{"3S10M1D5M2I", sam.Cigar{
			op(sam.CigarSoftClipped, 3),
			op(sam.CigarMatch, 10),
			op(sam.CigarDeletion, 1),
			op(sam.CigarMatch, 5),
			op(sam.CigarInsertion, 2),
		}},
		{"5H2=1X120M", sam.Cigar{
			op(sam.CigarHardClipped, 5),
			op(sam.CigarEqual, 2),
			op(sam.CigarMismatch, 1),
			op(sam.CigarMatch, 120),
		}},
		{"0M", sam.Cigar{op(sam.CigarMatch, 0)}},
	}
	for _, test := range tests {
		got, err := Parse(test.in)
		require.NoError(t, err, test.in)
		expect.EQ(t, got, test.want, test.in)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"10",
		"M",
		"*",
		"10M5",
		"3S10N4M",
		"4P",
		"4M2B",
		"4m",
		"4M 2D",
		"999999999M",
	} {
		c, err := Parse(in)
		require.Error(t, err, in)
		assert.Nil(t, c, in)
		_, ok := err.(*ParseError)
		assert.True(t, ok, "%q: got %T", in, err)
	}
}

func TestParseErrorOffset(t *testing.T) {
	_, err := Parse("4M2Q")
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	expect.EQ(t, perr.Offset, 3)
	expect.EQ(t, perr.Cigar, "4M2Q")
	assert.Contains(t, perr.Error(), "unknown operation")
}

func TestRoundTrip(t *testing.T) {
	types := []sam.CigarOpType{
		sam.CigarMatch, sam.CigarInsertion, sam.CigarDeletion,
		sam.CigarSoftClipped, sam.CigarHardClipped, sam.CigarEqual, sam.CigarMismatch,
	}
	r := rand.New(rand.NewSource(0))
	for iter := 0; iter < 1000; iter++ {
		n := 1 + r.Intn(20)
		c := make(sam.Cigar, n)
		for i := range c {
			c[i] = op(types[r.Intn(len(types))], 1+r.Intn(100000))
		}
		s := Format(c)
		got, err := Parse(s)
		require.NoError(t, err, s)
		require.Equal(t, c, got, s)
	}
}

func TestLengths(t *testing.T) {
	c, err := Parse("2S4M1D2M1I2S")
	require.NoError(t, err)
	expect.EQ(t, RefLen(c), 7)
	expect.EQ(t, QueryLen(c), 11)
	expect.EQ(t, Format(c), "2S4M1D2M1I2S")
	expect.EQ(t, Format(nil), "")
}
