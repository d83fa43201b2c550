// Package models defines the records exchanged between the intake, selection and dispatch stages.
//
//   - [ScheduledVideo] : the single persisted entity, stored as JSON under [VideoKey]
//   - [DispatchResult] : outcome of dispatching one entry
//   - [BatchReport] : outcome of one dispatch run
//
// A ScheduledVideo moves through Submitted, Due, Uploading (leased under [LeaseKey]) and then either
// Published, where the record is deleted, or Failed, where it stays and becomes Due again on the next run.
package models
