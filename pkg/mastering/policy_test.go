package mastering

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/reservation"
)

func activeConfig(name string, masters ...entity.Type) *platform.Config {
	return &platform.Config{
		ID:           "cfg-" + name,
		RestaurantID: "rest-1",
		Platform:     name,
		MasterFor:    masters,
		IsActive:     true,
	}
}

func TestMaster(t *testing.T) {
	cfgs := []*platform.Config{
		activeConfig("covermanager", entity.MenuItem),
		activeConfig("resos", entity.Reservation, entity.Availability),
	}

	require.Equal(t, "resos", Master(cfgs, entity.Reservation))
	require.Equal(t, "covermanager", Master(cfgs, entity.MenuItem))
	require.Equal(t, SelfMaster, Master(cfgs, entity.Order))
	require.Equal(t, SelfMaster, Master(nil, entity.Reservation))
}

func TestMaster_IgnoresInactiveConfigs(t *testing.T) {
	inactive := activeConfig("resos", entity.Reservation)
	inactive.IsActive = false

	require.Equal(t, SelfMaster, Master([]*platform.Config{inactive}, entity.Reservation))
}

func TestReservationMaster_TerminalStatusOverridesConfig(t *testing.T) {
	cfgs := []*platform.Config{activeConfig("resos", entity.Reservation)}

	pending := &reservation.Reservation{Status: reservation.StatusPending}
	require.Equal(t, "resos", ReservationMaster(cfgs, pending))

	for _, status := range []reservation.Status{
		reservation.StatusSeated,
		reservation.StatusCompleted,
		reservation.StatusNoShow,
	} {
		res := &reservation.Reservation{Status: status}
		require.Equal(t, SelfMaster, ReservationMaster(cfgs, res), "status %s", status)
	}
}

func TestReservationMaster_OriginPlatformMasters(t *testing.T) {
	// resos is connected but not configured as masterFor reservations.
	cfgs := []*platform.Config{activeConfig("resos")}

	fromResos := &reservation.Reservation{
		Status:         reservation.StatusConfirmed,
		OriginPlatform: "resos",
	}
	require.Equal(t, "resos", ReservationMaster(cfgs, fromResos))

	// Origin wins over a masterFor claim by a different platform.
	withClaim := append(cfgs, activeConfig("covermanager", entity.Reservation))
	require.Equal(t, "resos", ReservationMaster(withClaim, fromResos))

	// A terminal status overrides the origin rule.
	seated := &reservation.Reservation{
		Status:         reservation.StatusSeated,
		OriginPlatform: "resos",
	}
	require.Equal(t, SelfMaster, ReservationMaster(cfgs, seated))
}

func TestReservationMaster_UnknownOriginFallsBackToConfig(t *testing.T) {
	// The originating platform was disconnected; its claim lapses.
	gone := &reservation.Reservation{
		Status:         reservation.StatusConfirmed,
		OriginPlatform: "opentable",
	}
	require.Equal(t, SelfMaster, ReservationMaster([]*platform.Config{activeConfig("resos")}, gone))

	inactive := activeConfig("resos")
	inactive.IsActive = false
	fromResos := &reservation.Reservation{
		Status:         reservation.StatusConfirmed,
		OriginPlatform: "resos",
	}
	require.Equal(t, SelfMaster, ReservationMaster([]*platform.Config{inactive}, fromResos))

	// Locally created reservations use the masterFor scan.
	localBorn := &reservation.Reservation{Status: reservation.StatusConfirmed}
	cfgs := []*platform.Config{activeConfig("covermanager", entity.Reservation)}
	require.Equal(t, "covermanager", ReservationMaster(cfgs, localBorn))
}

func TestResolveConflict_RemoteMasterAppliesRemoteState(t *testing.T) {
	local := &reservation.Reservation{
		ID:           "local-1",
		RestaurantID: "rest-1",
		CustomerID:   "cust-1",
		Status:       reservation.StatusConfirmed,
		PartySize:    2,
		Notes:        "window table",
		Allergies:    []string{"nuts"},
		Version:      4,
	}
	remote := &reservation.Reservation{
		Status:    reservation.StatusCancelled,
		PartySize: 4,
		Notes:     "guest called",
		Allergies: []string{"shellfish"},
	}

	res := ResolveConflict("resos", "resos", local, remote)

	require.Equal(t, WinnerRemote, res.Winner)
	require.Equal(t, "local-1", res.Merged.ID)
	require.Equal(t, "rest-1", res.Merged.RestaurantID)
	require.Equal(t, "cust-1", res.Merged.CustomerID)
	require.Equal(t, int64(4), res.Merged.Version)
	require.Equal(t, reservation.StatusCancelled, res.Merged.Status)
	require.Equal(t, 4, res.Merged.PartySize)
	require.Equal(t, "guest called", res.Merged.Notes)
	require.ElementsMatch(t, []string{"nuts", "shellfish"}, res.Merged.Allergies)
}

func TestResolveConflict_LocalMasterKeepsLocalState(t *testing.T) {
	local := &reservation.Reservation{
		ID:        "local-1",
		Status:    reservation.StatusConfirmed,
		PartySize: 2,
		Allergies: []string{"nuts"},
	}
	remote := &reservation.Reservation{
		Status:    reservation.StatusCancelled,
		PartySize: 6,
		Allergies: []string{"gluten", "nuts"},
	}

	res := ResolveConflict(SelfMaster, "resos", local, remote)

	require.Equal(t, WinnerLocal, res.Winner)
	require.Equal(t, reservation.StatusConfirmed, res.Merged.Status)
	require.Equal(t, 2, res.Merged.PartySize)
	require.ElementsMatch(t, []string{"nuts", "gluten"}, res.Merged.Allergies)
}

func TestResolveConflict_TerminalLocalStatusWins(t *testing.T) {
	local := &reservation.Reservation{
		ID:     "local-1",
		Status: reservation.StatusSeated,
	}
	remote := &reservation.Reservation{
		Status: reservation.StatusCancelled,
	}

	// The caller computes the master via ReservationMaster, which already
	// forces self for terminal statuses.
	res := ResolveConflict(SelfMaster, "resos", local, remote)

	require.Equal(t, WinnerLocal, res.Winner)
	require.Equal(t, reservation.StatusSeated, res.Merged.Status)
	require.Contains(t, res.Description, "seated")
}

func TestResolveConflict_MissingSides(t *testing.T) {
	local := &reservation.Reservation{ID: "local-1"}
	remote := &reservation.Reservation{Status: reservation.StatusConfirmed}

	res := ResolveConflict("resos", "resos", local, nil)
	require.Equal(t, WinnerLocal, res.Winner)
	require.Same(t, local, res.Merged)

	res = ResolveConflict("resos", "resos", nil, remote)
	require.Equal(t, WinnerRemote, res.Winner)
	require.Same(t, remote, res.Merged)
}
