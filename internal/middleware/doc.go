// Package middleware provides HTTP middleware for the media fetcher API.
//
// It includes:
//   - Request logging in W3C Extended Log Format, including the request id
//     of image and data fetches; a "#Fields:" directive precedes the first line
//   - Prometheus request metrics labeled by route template
//   - gzip compression of JSON responses; encoded images pass through untouched
//
// Every wrapping ResponseWriter implements Unwrap so that
// http.ResponseController can set write deadlines on the connection.
package middleware
