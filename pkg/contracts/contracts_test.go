package contracts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawABIsParse(t *testing.T) {
	t.Parallel()

	for name, raw := range rawABIs {
		parsed := MustABI(raw)
		if name == ERC20Relay {
			// Events are declared only where the gateway consumes them.
			continue
		}
		require.NotEmpty(t, parsed.Events, "contract %s", name)
	}
}

func TestEventID(t *testing.T) {
	t.Parallel()

	id, err := EventID(BountyRegistry, "NewBounty")
	require.NoError(t, err)
	require.Equal(t, MustABI(BountyRegistryABI).Events["NewBounty"].ID, id)

	_, err = EventID(BountyRegistry, "NoSuchEvent")
	require.Error(t, err)

	_, err = EventID("no_such_contract", "NewBounty")
	require.Error(t, err)
}

func TestVersionRangesCoverCheckedContracts(t *testing.T) {
	t.Parallel()

	for name := range versionRanges {
		_, ok := rawABIs[name]
		require.True(t, ok, "version range for unknown contract %s", name)
		require.NotEmpty(t, MustABI(rawABIs[name]).Methods["VERSION"].Outputs)
	}
}
