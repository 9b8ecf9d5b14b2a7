// Package chat streams completions from an Ollama-compatible /api/chat
// endpoint, which answers with newline-delimited JSON.
//
// One request opens one session. The session is consumed either by
// pulling:
//
//	stream := client.Stream(ctx, chat.Request{
//	    Model:    "llama3.2",
//	    Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
//	})
//	defer stream.Close()
//	for chunk, err := range stream.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Message.Content)
//	}
//
// or by subscribing:
//
//	pub := client.Publish(ctx, req)
//	sub := pub.Subscribe(chat.ObserverFuncs{
//	    Next:     func(c chat.Chunk) { fmt.Print(c.Message.Content) },
//	    Complete: func() { fmt.Println() },
//	    Error:    func(err error) { log.Print(err) },
//	})
//	<-sub.Done()
//
// Every failure, including a request that cannot be built, arrives as the
// terminal event of the session; Stream and Publish never fail
// synchronously. Errors are *errors.AppError values with codes
// BUILD_FAILED, TRANSPORT_FAILED, DECODE_FAILED, UPSTREAM_ERROR or
// CANCELED. Chunks delivered before a failure stay valid.
package chat
