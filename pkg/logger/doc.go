// Package logger provides leveled, structured logging for hatch.
//
// The Logger interface keeps call sites independent of the backend; the
// implementation is zap, with an optional rotating JSON file written
// through lumberjack:
//
//	log, closer := logger.New(logger.Options{
//	    Level:   logger.LevelInfo,
//	    Console: os.Stderr,
//	    File:    ".hatch/hatch.log",
//	})
//	defer closer.Close()
//
//	log.Info("materialized", logger.F("files", 12))
package logger
