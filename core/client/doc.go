// Package client ties the invocation machinery together into a single
// cluster client: a member table, a connection registry, a response
// dispatcher and the invocation service, wired and defaulted from one
// Config.
//
// # Basic Usage
//
//	c, err := client.New(client.Config{
//	    Transport: transport,
//	    Members:   []string{"10.0.0.1:5701", "10.0.0.2:5701"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Shutdown(ctx)
//
//	resp, err := c.Call(ctx, &invocation.Message{Type: "map.get", Data: key})
//
// Key-addressed operations route to the owner of the key's partition:
//
//	resp, err := c.CallOnKey(ctx, msg, "user:123")
//
// Long-lived event streams register a handler that survives retries and
// reconnections of the underlying invocation:
//
//	f, err := c.Listen(msg, func(ev *invocation.Message) { ... })
package client
