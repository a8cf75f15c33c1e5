package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/realpulse/bds-harvester/internal/listing"
)

func TestFilterFromFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--location", "Cầu Giấy",
		"--price-from", "2000000000",
		"--max-pages", "3",
	}))

	base := listing.FilterSpec{
		Location: "Đống Đa",
		AreaFrom: "40",
		MaxPages: 5,
	}
	filter := filterFromFlags(cmd, base)

	// Flags win over config, untouched fields survive.
	require.Equal(t, "Cầu Giấy", filter.Location)
	require.Equal(t, "2000000000", filter.PriceFrom)
	require.Equal(t, 3, filter.MaxPages)
	require.Equal(t, "40", filter.AreaFrom)
	require.Zero(t, filter.MaxItemsPerPage)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.Contains(t, names, "run")
	require.Contains(t, names, "serve")
}
