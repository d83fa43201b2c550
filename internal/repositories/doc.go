// Package repositories persists scheduled-video records and dispatch leases on a [kvstore.Store].
//
//   - [VideoRepository] : JSON records under "video:<pathname>"
//   - [Lease] : an owned, expiring claim under "lease:video:<pathname>"
package repositories
