// Package sharesync is the client-side synchronization engine for a
// content-addressed code hosting service: it pushes and pulls causal
// sub-DAGs between a local badger-backed object store and a remote
// Share instance over HTTP.
//
// The package wires together pkg/syncstore (storage), pkg/synctransport
// (the five /sync endpoints), pkg/causalbfs (the causal-spine search),
// pkg/uploadloop (the shared upload-to-convergence loop), pkg/push
// (check-and-set and fast-forward), and pkg/pull (the four-role
// concurrent pull pipeline) behind a single Client facade.
package sharesync
