package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		text   string
		expect string
	}{
		{text: "  The  MATRIX ", expect: "the matrix"},
		{text: "black\tswan\n", expect: "black swan"},
		{text: "already normal", expect: "already normal"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, Normalize(test.text))
	}
}

func TestTitleCase(t *testing.T) {
	cases := []struct {
		text   string
		expect string
	}{
		{text: "science-fiction", expect: "Science-Fiction"},
		{text: "tommy wiseau", expect: "Tommy Wiseau"},
		{text: "o'brien", expect: "O'Brien"},
		{text: "DRAMA", expect: "Drama"},
		{text: "2001", expect: "2001"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, TitleCase(test.text))
	}
}

func TestSlugToName(t *testing.T) {
	require.Equal(t, "Tommy Wiseau", SlugToName("tommy-wiseau/"))
	require.Equal(t, "Lana Wachowski", SlugToName("/lana-wachowski/"))
}
