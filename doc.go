// Package dashboard hosts the authenticated widget page of the assessment
// app.
//
// A Page composes three collaborators:
//   - an auth.Provider, the per cookie session state, guarded through
//     auth.Guard so visitors without a session are sent to sign in once;
//   - a DataService that loads the visitor's profile, fetched once per mount
//     and shared read-only by the active widget;
//   - a Registry of WidgetDescriptor values, filtered at read time by
//     availability, role and the "widgets.<id>" feature gate.
//
// Page phases:
//   - Unauthenticated before Mount and after Unmount.
//   - Loading while the session resolves and the profile loads. Identity
//     backend failures keep the page here with a banner.
//   - Ready once the profile request settles. A Ready frame always renders
//     exactly one widget region.
//
// Selections made while Loading are applied when the data arrives. Results
// that arrive after Unmount are dropped.
//
// Exports go through export.Service with a clone of the page data, so a
// later refresh never changes an export that is already running.
package dashboard
