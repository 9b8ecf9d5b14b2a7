// Package pipeline provides lazy, pull-based operators over iterators.
//
// Nothing runs until a terminal (Collect, Drain, ForEach, Seq) pulls values.
// Errors are terminal: the first error from a source or operator ends the
// pipeline and is returned by the terminal.
//
//	text := pipeline.Map(pipeline.From[chat.Chunk](stream),
//	    func(_ context.Context, c chat.Chunk) (string, error) { return c.Message.Content, nil })
//	err := pipeline.ForEach(ctx, text, func(_ context.Context, s string) error {
//	    _, err := io.WriteString(os.Stdout, s)
//	    return err
//	})
package pipeline
