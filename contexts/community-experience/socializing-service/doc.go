// Package socializingservice schedules one-off cohort gatherings inside the
// community-experience context.
//
// A moderator opens option voting over a date x location catalog, resolves a
// plurality (or pinned) winner into a draft result, runs an attendance check
// and confirms the attendee/absentee snapshot. Every phase change is a guarded
// write on the cohort's event; tallies are always recomputed from the vote
// ledger. Outbox-backed workers feed live tally observers and advisory
// deadline notices.
package socializingservice
