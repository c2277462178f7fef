// Package server exposes the photo library over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method-qualified patterns, e.g. "GET /albums/{id}".
//
// # Endpoints
//
//	POST   /classifications                  raw image body, 201 with the filed outcome
//	GET    /classifications/{id}
//	GET    /classifications/{id}/image
//	GET    /classifications/{id}/similar     ?max_distance=10
//	PATCH  /classifications/{id}             {"album_id": "..."}
//	DELETE /classifications/{id}             204
//	GET    /albums
//	GET    /albums/{id}                      album with photos in timestamp order
//	GET    /albums/{id}/classifications      ?order=confidence|timestamp
//	PATCH  /albums/{id}                      {"name": "..."}
//	DELETE /albums/{id}                      204, cascades to the album's photos
//	GET    /healthz
//	GET    /metrics
//
// # Errors
//
// Failures answer with {"error": "...", "kind": "..."}. The status follows the error kind:
// invalid input and undecodable images are 400, missing records 404, classifier failures 502,
// timeouts 504 and everything else 500. See [StatusFor].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
