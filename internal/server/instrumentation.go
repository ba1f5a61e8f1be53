package server

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-relay/internal/server"

var logger = otelslog.NewLogger(scopeName)
