// Package tasks implements the schedule-and-publish workflow.
//
// # Operations
//
//  1. [Intake.Schedule] : stores a submitted video and its metadata
//     - Writes the payload to the blob store under "videos/<filename>" (the store adds a suffix)
//     - Writes the record keyed by the resulting pathname
//     - Deletes the blob again if the record cannot be written
//
//  2. [Selector.DueToday] : lists stored videos whose scheduled date equals today's UTC date
//     - Records that are missing or unreadable are skipped and logged
//
//  3. [Dispatcher.Run] : publishes every due video, one at a time
//     - Claims a lease per entry so overlapping triggers never publish twice
//     - Deletes blob and record only after the platform returns a video id
//     - Collects one result per entry; a failed entry never stops the batch
//
//  4. [DailyTrigger] : runs the dispatcher on a cron schedule inside the server process
//
// # Progress Reporting
//
// Dispatch emits [ProgressUpdate] values on an optional channel. Sends never block: when the channel is
// full the update is dropped.
package tasks
