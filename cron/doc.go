// Package cron parses schedule expressions and drives the scheduled
// queues.
//
// Expressions use the robfig/cron grammar with an optional leading
// seconds field and descriptors such as "@hourly" or "@every 30s". A
// seventh year field is accepted only as "*".
//
// [Scheduler] is run by the leader only. On acquiring leadership it seeds
// every recurring job and workflow that is not already scheduled; each
// cycle it promotes due jobs into pending, starts due workflows, and
// re-arms recurring entries with their next fire time.
package cron
