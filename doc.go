// Package session reconciles an externally issued identity credential with
// the authorization record (role, premium flag) held by an application
// backend, and fans the merged state out to every consumer: route guards,
// conditional UI, and the optimistic interaction toggles.
//
// Session lifecycle:
//   - The Store owns the merged Session and is its only writer. It subscribes
//     to an IdentityAdapter for credential events, resolves entitlements
//     through an EntitlementResolver, and notifies subscribers synchronously
//     on every transition. Resolution failures degrade to least-privilege
//     defaults instead of blocking the application.
//   - A credential change while a resolution is still in flight wins: the
//     stale result is detected by its captured identity key and dropped.
//
// Access policy:
//   - Policy centralizes the authenticated/admin/premium predicates,
//     including the configured privileged-address escape hatch, so the checks
//     never drift between consumers.
//
// Interaction toggles:
//   - Coordinator applies like/favorite mutations optimistically, reconciles
//     against the server-confirmed counts, and rolls back exactly to the
//     pre-toggle state on failure. A per-item, per-kind in-flight guard
//     absorbs rapid double clicks.
package session
