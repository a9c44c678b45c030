// SPDX-License-Identifier: MPL-2.0

// Package issue provides structured, user-facing error reporting: actionable
// errors carrying operation/resource/suggestion context, and rendered
// guidance pages for the failure modes the activation engine can hit.
package issue
