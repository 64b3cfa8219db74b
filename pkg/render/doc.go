// Package render turns content types and their arguments into channel-agnostic
// elements.
//
// The default Renderer knows the builtin content types (text, image, card,
// carousel and single choice). Bots add their own with Register. String
// arguments are templates: {{path}} placeholders resolve against the
// arguments themselves, which carry the event, user, temp, session, bot and
// workflow variables when called from a flow.
package render
