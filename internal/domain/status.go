package domain

import "time"

// DeriveStatus computes the lifecycle status of a record from its stored fields
// and holding partition. Pure, no I/O.
//
// Members partition: expired iff ExpirationDate exists and falls strictly before
// today, comparing dates only (time of day is ignored so the answer cannot flap
// with timezones); a missing ExpirationDate means a non-expiring legacy record,
// which derives active.
//
// Applications partition: rejected iff the explicit marker is set, else pending.
func DeriveStatus(r Record, p Partition, today time.Time) Status {
	if p == PartitionMembers {
		if r.ExpirationDate != nil && dateOnly(*r.ExpirationDate).Before(dateOnly(today)) {
			return StatusExpired
		}
		return StatusActive
	}
	if r.Rejected {
		return StatusRejected
	}
	return StatusPending
}

// YearEnd returns December 31 of the given membership year, UTC. Activation and
// renewal always stamp this as the record's expiration date.
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
