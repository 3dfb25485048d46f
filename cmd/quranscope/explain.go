package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/reader"
)

// ExplainCmd streams an explanation to stdout. Interrupting stops the
// stream without an error.
type ExplainCmd struct {
	Ref        string `arg:"" help:"Verse reference, e.g. 2:255"`
	Style      string `help:"Explanation style (balanced, tldr, bullets, study, youth, reflection, linguistic, context)"`
	Length     string `help:"Explanation length (short, medium); ignored by tldr and bullets"`
	Regenerate bool   `help:"Ask the service to bypass its cache"`
}

func (c *ExplainCmd) Run(app *App) error {
	ref, err := corpus.ParseRef(c.Ref)
	if err != nil {
		return err
	}
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := explain.Options{Style: explain.Style(c.Style), Length: explain.Length(c.Length)}
	return streamExplanation(app.Context(), app.Out, sess, ref, opts, c.Regenerate)
}

// streamExplanation writes chunks to w as they arrive and then whatever the
// session appended after them.
func streamExplanation(ctx context.Context, w io.Writer, sess *reader.Session, ref corpus.Ref,
	opts explain.Options, regenerate bool) error {
	ex := sess.Explanation()
	var written strings.Builder
	unsubscribe := ex.Subscribe(func(ev explain.Event) {
		if ev.State == explain.Streaming {
			io.WriteString(w, ev.Chunk)
			written.WriteString(ev.Chunk)
		}
	})
	defer unsubscribe()

	if err := sess.Explain(ctx, ref, opts, regenerate); err != nil {
		return err
	}
	// The stream ends on its own when ctx is cancelled.
	if err := ex.Wait(context.Background()); err != nil {
		return err
	}

	snap := ex.Snapshot()
	switch snap.State {
	case explain.Stopped, explain.Idle:
		fmt.Fprintln(w)
		return nil
	case explain.Errored:
		var se *qerrors.StatusError
		if qerrors.As(snap.Err, &se) {
			return fmt.Errorf("explanation service returned %d: %s", se.Code, strings.TrimSpace(snap.Text))
		}
		return snap.Err
	}
	if rest, ok := strings.CutPrefix(snap.Text, written.String()); ok {
		io.WriteString(w, rest)
	}
	fmt.Fprintln(w)
	return nil
}
