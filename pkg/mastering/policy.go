// Package mastering decides which side of a sync wins when both sides of
// an entity have changed.
package mastering

import (
	"fmt"

	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/reservation"
)

// SelfMaster marks the local system as the authority for an entity type.
const SelfMaster = "self"

// Winner identifies the side whose version survived conflict resolution.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// Resolution is the outcome of resolving one conflict.
type Resolution struct {
	Winner Winner
	// Merged is the reservation state to persist locally. Safety fields
	// are merged from both sides regardless of the winner.
	Merged *reservation.Reservation
	// Description explains the decision for the audit ledger.
	Description string
}

// Master returns the platform authoritative for an entity type, or
// SelfMaster when no active config claims it. The first claiming config
// in the given order wins; configs are expected pre-sorted by platform.
func Master(cfgs []*platform.Config, t entity.Type) string {
	for _, cfg := range cfgs {
		if cfg.IsActive && cfg.Masters(t) {
			return cfg.Platform
		}
	}
	return SelfMaster
}

// ReservationMaster returns the authority for one concrete reservation.
// A reservation whose local status is terminal is always mastered
// locally: a guest who has been seated cannot be un-seated by a stale
// platform payload. Below that, a reservation that originated on an
// active external platform stays mastered by that platform; only
// locally created reservations fall back to the configured masterFor
// scan.
func ReservationMaster(cfgs []*platform.Config, res *reservation.Reservation) string {
	if res != nil && res.Status.TerminalLocal() {
		return SelfMaster
	}
	if res != nil && res.OriginPlatform != "" {
		for _, cfg := range cfgs {
			if cfg.IsActive && cfg.Platform == res.OriginPlatform {
				return res.OriginPlatform
			}
		}
	}
	return Master(cfgs, entity.Reservation)
}

// ResolveConflict picks a winner between the diverged local and remote
// versions of a reservation. remotePlatform is the platform the remote
// version came from; master is the authority per ReservationMaster.
func ResolveConflict(master, remotePlatform string, local, remote *reservation.Reservation) *Resolution {
	if remote == nil {
		return &Resolution{
			Winner:      WinnerLocal,
			Merged:      local,
			Description: "no remote version, local state kept",
		}
	}
	if local == nil {
		return &Resolution{
			Winner:      WinnerRemote,
			Merged:      remote,
			Description: fmt.Sprintf("no local version, %s state adopted", remotePlatform),
		}
	}

	if master == remotePlatform {
		merged := *remote
		// Identity and bookkeeping always stay local.
		merged.ID = local.ID
		merged.RestaurantID = local.RestaurantID
		merged.Version = local.Version
		merged.CreatedAt = local.CreatedAt
		if merged.CustomerID == "" {
			merged.CustomerID = local.CustomerID
		}
		if merged.OriginPlatform == "" {
			merged.OriginPlatform = local.OriginPlatform
		}
		merged.Allergies = unionAllergies(local.Allergies, remote.Allergies)

		return &Resolution{
			Winner:      WinnerRemote,
			Merged:      &merged,
			Description: fmt.Sprintf("%s masters reservations, remote state applied", remotePlatform),
		}
	}

	merged := *local
	// Allergy information is never discarded, whichever side wins.
	merged.Allergies = unionAllergies(local.Allergies, remote.Allergies)

	desc := "local side masters reservations, local state kept"
	if local.Status.TerminalLocal() {
		desc = fmt.Sprintf("reservation is %s, terminal local status kept", local.Status)
	}
	return &Resolution{
		Winner:      WinnerLocal,
		Merged:      &merged,
		Description: desc,
	}
}

func unionAllergies(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}

	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
