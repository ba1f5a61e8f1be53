package texttospeech

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-relay/core/texttospeech"

var logger = otelslog.NewLogger(scopeName)
