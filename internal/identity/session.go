package identity

// Session is the persisted record of one session-strategy identity: a
// window [CreateTime, EndTime], both ends inclusive, during which a given pseudo_key denoted a
// single canonical node (spec §4.B). A pseudo_key can have many Session
// rows over time — e.g. a PID gets reused by the OS — each with its own
// Uid.
type Session struct {
	Uid      uint64
	TenantID string

	PseudoKey string

	CreateTime uint64
	EndTime    uint64

	// IsCreateCanon latches true once a Create-action observation has been
	// folded into this session; it never reverts to false. The same holds
	// for IsEndCanon and Terminate-action observations (spec §4.B tie-break
	// invariant: canon flags only ever turn on).
	IsCreateCanon bool
	IsEndCanon    bool

	// Version is the optimistic-concurrency token: every update is a
	// compare-and-swap against the Version the caller last read (spec
	// §4.B CAS loop).
	Version uint64
}

// Action classifies an observation of a session-strategy node, mirroring
// the three states a process/file/connection lifecycle can report.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdateOrCreate
	ActionTerminate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "Create"
	case ActionUpdateOrCreate:
		return "UpdateOrCreate"
	case ActionTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// applyObservation folds a single observation (action, timestamp) into an
// existing session record per spec §4.B/§5's order-independent fixed point:
//   - create_time is the min over every observation's timestamp, regardless
//     of action — a Terminate observed before the matching Create still
//     pulls CreateTime down (spec §8 "out-of-order session").
//   - end_time is the max over every observation's timestamp, regardless of
//     action — a Create observed after the current window still extends it.
//   - IsCreateCanon latches on an actual Create observation, IsEndCanon on
//     an actual Terminate observation; neither ever reverts.
//   - on an exact tie between two candidate sessions for the same
//     observation, the session with the smaller Uid wins (deterministic,
//     independent of arrival order).
//
// Returns whether the record was mutated, so the caller can skip a write
// when the observation carried no new information.
func applyObservation(s *Session, action Action, timestamp uint64) (changed bool) {
	switch action {
	case ActionCreate:
		if timestamp < s.CreateTime {
			s.CreateTime = timestamp
			changed = true
		}
		if timestamp > s.EndTime {
			s.EndTime = timestamp
			changed = true
		}
		if !s.IsCreateCanon {
			s.IsCreateCanon = true
			changed = true
		}
	case ActionUpdateOrCreate:
		if timestamp < s.CreateTime {
			s.CreateTime = timestamp
			changed = true
		}
		if timestamp > s.EndTime {
			s.EndTime = timestamp
			changed = true
		}
	case ActionTerminate:
		if timestamp < s.CreateTime {
			s.CreateTime = timestamp
			changed = true
		}
		if timestamp > s.EndTime {
			s.EndTime = timestamp
			changed = true
		}
		if !s.IsEndCanon {
			s.IsEndCanon = true
			changed = true
		}
	}
	return changed
}

// resolveTie picks the canonical session between two candidates that both
// claim the same observation window: the smaller uid wins, deterministically,
// regardless of which replica observed it first (spec §4.B tie-break rule).
func resolveTie(a, b *Session) *Session {
	if a.Uid <= b.Uid {
		return a
	}
	return b
}

// selectCandidate implements spec §4.B's two-tier search over every session
// row sharing a pseudo_key, picking the row an observation of (action,
// timestamp) resolves against. ok is false when no row qualifies and the
// caller must create a new session.
func selectCandidate(rows []Session, action Action, timestamp uint64) (Session, bool) {
	if action == ActionTerminate {
		return selectTerminateCandidate(rows, timestamp)
	}
	return selectAttachCandidate(rows, timestamp)
}

// selectAttachCandidate implements the Create/UpdateOrCreate tier: first the
// session active at timestamp (greatest create_time <= timestamp, still open
// or else canonically closed with a window that still covers timestamp),
// else the nearest not-yet-create-canon future session (least create_time
// >= timestamp) for adoption.
func selectAttachCandidate(rows []Session, timestamp uint64) (Session, bool) {
	var best *Session
	for i := range rows {
		r := &rows[i]
		if r.CreateTime > timestamp {
			continue
		}
		if r.IsEndCanon && r.EndTime < timestamp {
			continue
		}
		best = maximizeCreateTime(best, r)
	}
	if best != nil {
		return *best, true
	}

	best = nil
	for i := range rows {
		r := &rows[i]
		if r.CreateTime < timestamp || r.IsCreateCanon {
			continue
		}
		best = minimizeCreateTime(best, r)
	}
	if best != nil {
		return *best, true
	}
	return Session{}, false
}

// selectTerminateCandidate implements the Terminate tier: first the
// not-yet-closed session with the greatest create_time <= timestamp, else
// the nearest not-yet-closed future session (least create_time >=
// timestamp) for adoption — this is what lets a Terminate observed before
// its matching Create still merge into the same session row instead of
// spawning a second, degenerate one (spec §8 "out-of-order session").
func selectTerminateCandidate(rows []Session, timestamp uint64) (Session, bool) {
	var best *Session
	for i := range rows {
		r := &rows[i]
		if r.CreateTime > timestamp || r.IsEndCanon {
			continue
		}
		best = maximizeCreateTime(best, r)
	}
	if best != nil {
		return *best, true
	}

	best = nil
	for i := range rows {
		r := &rows[i]
		if r.CreateTime < timestamp || r.IsEndCanon {
			continue
		}
		best = minimizeCreateTime(best, r)
	}
	if best != nil {
		return *best, true
	}
	return Session{}, false
}

func maximizeCreateTime(best, r *Session) *Session {
	switch {
	case best == nil:
		return r
	case r.CreateTime > best.CreateTime:
		return r
	case r.CreateTime == best.CreateTime:
		return resolveTie(best, r)
	default:
		return best
	}
}

func minimizeCreateTime(best, r *Session) *Session {
	switch {
	case best == nil:
		return r
	case r.CreateTime < best.CreateTime:
		return r
	case r.CreateTime == best.CreateTime:
		return resolveTie(best, r)
	default:
		return best
	}
}
