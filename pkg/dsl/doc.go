/*
Package dsl provides a Go DSL for programmatically constructing dialog flows.

It defines flows with a fluent builder instead of flow files, which is useful
for tests, embedded bots and generated flows.

Example usage:

	b := dsl.New()

	main := b.Flow("main.flow.json")
	main.Add("entry").
		Say("builtin_text", map[string]any{"text": "Hi! What is your name?"}).
		Wait().
		Do("builtin/setVariable", map[string]any{"type": "user", "name": "name", "value": "{{event.preview}}"}).
		Go("greet")
	main.Add("greet").
		Say("builtin_text", map[string]any{"text": "Nice to meet you {{user.name}}"}).
		End()

	// The loader can be handed to botpress.New via botpress.WithFlowLoader.
	loader, err := b.Build("my-bot")
*/
package dsl
