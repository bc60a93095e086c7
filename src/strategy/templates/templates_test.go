package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	cases := map[string]string{
		"Create an ERC20 with burn":         "erc20",
		"a governance token":                "erc20",
		"NFT collection for my art":         "erc721",
		"2 of 3 multisig treasury":          "multisig",
		"escrow between buyer and merchant": "vault",
	}
	for prompt, want := range cases {
		got := lib.Match(prompt)
		assert.Equal(t, want, got.Name, prompt)
		assert.Contains(t, got.Code, "pragma solidity ^0.8.20;")
		assert.NotEmpty(t, got.Explanation)
	}
}

func TestDefaultTemplateIsGuarded(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	got := lib.Match("anything")
	assert.Contains(t, got.Code, "ReentrancyGuard")
	assert.Contains(t, got.Code, "Ownable(initialOwner)")
}
