package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/peoplemetrics/attrition/pkg/errors"
)

// InstallWarningSink routes warnings raised through errors.Warn into a
// zerolog logger writing to w (stderr when w is nil). Warning types that
// implement zerolog.LogObjectMarshaler are emitted as structured objects,
// so a ConvergenceWarning shows up with its algorithm and iteration count
// rather than a flat string.
func InstallWarningSink(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	errors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.Object("warning", obj).Msg(warning.Error())
			return
		}
		ev.Str("warning", warning.Error()).Msg(warning.Error())
	})
}
