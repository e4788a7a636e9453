// Package refreshfunc builds authrelay.RefreshFunc values from common refresh
// call shapes, so embedders rarely need to hand-write the HTTP exchange:
//
//   - Endpoint: POST a JSON payload to a token endpoint and extract the new
//     token from the response body by JSON path
//   - OAuth2: drive a standard OAuth2 refresh-token grant, tracking rotated
//     refresh tokens across calls
//
// Both adapters dispatch through the client handed to the RefreshFunc, so
// they inherit whatever transport and timeout the refresh client was
// configured with.
package refreshfunc
