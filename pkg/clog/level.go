package clog

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
)

type Level int

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

func HTTPStatusToLevel(status int) Level {
	switch {
	case status >= 100 && status < 400:
		return LevelInfo
	case status == 499:
		return LevelInfo
	case status >= 400 && status < 500:
		return LevelWarn
	case status >= 500:
		return LevelError
	default:
		return LevelError
	}
}

func ConnectCodeToLevel(code connect.Code) Level {
	switch code {
	case connect.CodeCanceled,
		connect.CodeInvalidArgument,
		connect.CodeDeadlineExceeded,
		connect.CodeNotFound,
		connect.CodeAlreadyExists,
		connect.CodePermissionDenied,
		connect.CodeFailedPrecondition,
		connect.CodeAborted,
		connect.CodeOutOfRange,
		connect.CodeUnauthenticated:
		return LevelInfo
	}
	return LevelError
}

// Log writes msg at the slog level matching l.
func Log(ctx context.Context, l Level, msg string, args ...any) {
	switch l {
	case LevelError:
		slog.ErrorContext(ctx, msg, args...)
	case LevelWarn:
		slog.WarnContext(ctx, msg, args...)
	case LevelInfo:
		slog.InfoContext(ctx, msg, args...)
	default:
		slog.DebugContext(ctx, msg, args...)
	}
}
