// Package services talks to the video platform.
//
// [YouTubeService] implements both halves of the integration:
//   - [Uploader] : publishes a media stream with title and description through videos.insert
//   - [Authenticator] : builds the consent URL and exchanges authorization codes for tokens
//
// Uploads authenticate with a long-lived refresh token; the [oauth2.TokenSource] built from it
// refreshes access tokens on demand, so nothing here persists tokens.
//
// Provider failures are wrapped with [shared.ErrUpstream] (uploads) or [shared.ErrAuthFailed]
// (code exchange) so the HTTP layer can map them without knowing about googleapi errors.
package services
