// Package signup holds the self-sovereign identity signup and restore flow.
//
// Package layout:
// - domain: states, events and the pure transition reducer
// - policy: input validation, import file classification and user messages
// - ports: boundary interfaces the usecases depend on
// - usecase: the flow controller, the submit sequence and the conflict dialog
package signup
